package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/burrowdb/burrow/buffer"
	"github.com/burrowdb/burrow/config"
	"github.com/burrowdb/burrow/storage/disk"
)

var (
	cfgPath string
	cfg     *config.Config
	log     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "burrow - a small relational storage core",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)

		if cfg.DataDir != "." {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return err
			}
			if err := os.Chdir(cfg.DataDir); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

// newPool builds the scheduler and buffer pool a command runs against.
func newPool() (*buffer.Manager, *disk.Scheduler) {
	sched := disk.NewScheduler()
	mgr := buffer.NewManager(cfg.BufferFrames, sched)
	mgr.SetLogger(log)
	return mgr, sched
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "burrow.yaml", "config file")
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(scanCmd)
}

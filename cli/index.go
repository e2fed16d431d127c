package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/burrowdb/burrow/index"
	"github.com/burrowdb/burrow/storage/relation"
)

var indexOffset int

var indexCmd = &cobra.Command{
	Use:   "index <relation>",
	Short: "Build a B+-tree index over a relation's integer attribute",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		relName := args[0]

		mgr, sched := newPool()
		defer sched.Close()

		heap, err := relation.OpenHeapFile(relName, mgr)
		if err != nil {
			return err
		}

		idx, err := index.New(index.Config{
			RelationName:   relName,
			AttrByteOffset: indexOffset,
			AttrType:       index.Integer,
		}, mgr, heap.Scan())
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"index":   idx.IndexName(),
			"records": heap.RecordCount(),
			"pool":    mgr.PoolStats(),
		}).Info("index built")

		if err := idx.Close(); err != nil {
			return err
		}
		if err := heap.Close(); err != nil {
			return err
		}
		return mgr.Close()
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexOffset, "offset", 0, "byte offset of the indexed attribute")
}

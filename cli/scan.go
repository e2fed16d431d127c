package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/burrowdb/burrow/index"
)

var (
	scanOffset int
	scanLow    int32
	scanHigh   int32
	scanLowOp  string
	scanHighOp string
)

var scanCmd = &cobra.Command{
	Use:   "scan <relation>",
	Short: "Range-scan a relation's B+-tree index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		relName := args[0]

		lowOp, err := parseLowOp(scanLowOp)
		if err != nil {
			return err
		}
		highOp, err := parseHighOp(scanHighOp)
		if err != nil {
			return err
		}

		mgr, sched := newPool()
		defer sched.Close()

		idx, err := index.New(index.Config{
			RelationName:   relName,
			AttrByteOffset: scanOffset,
			AttrType:       index.Integer,
		}, mgr, nil)
		if err != nil {
			return err
		}

		rids, err := idx.ScanRange(scanLow, lowOp, scanHigh, highOp)
		if err != nil {
			return err
		}
		for _, rid := range rids {
			fmt.Printf("page %d slot %d\n", rid.PageNo, rid.SlotNo)
		}

		log.Infof("scan matched %d records", len(rids))

		if err := idx.Close(); err != nil {
			return err
		}
		return mgr.Close()
	},
}

func parseLowOp(op string) (index.Operator, error) {
	switch op {
	case "gt":
		return index.GT, nil
	case "gte":
		return index.GTE, nil
	}
	return 0, errors.Errorf("low op must be gt or gte, got %q", op)
}

func parseHighOp(op string) (index.Operator, error) {
	switch op {
	case "lt":
		return index.LT, nil
	case "lte":
		return index.LTE, nil
	}
	return 0, errors.Errorf("high op must be lt or lte, got %q", op)
}

func init() {
	scanCmd.Flags().IntVar(&scanOffset, "offset", 0, "byte offset of the indexed attribute")
	scanCmd.Flags().Int32Var(&scanLow, "low", 0, "low bound")
	scanCmd.Flags().Int32Var(&scanHigh, "high", 0, "high bound")
	scanCmd.Flags().StringVar(&scanLowOp, "low-op", "gte", "low bound operator (gt|gte)")
	scanCmd.Flags().StringVar(&scanHighOp, "high-op", "lte", "high bound operator (lt|lte)")
}

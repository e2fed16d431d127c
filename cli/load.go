package cli

import (
	"bufio"
	"encoding/binary"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/burrowdb/burrow/storage/relation"
)

// recordSize is the fixed width of CLI-loaded relation records: room for
// the integer attribute at any reasonable offset plus filler.
const recordSize = 64

var loadKeyOffset int

var loadCmd = &cobra.Command{
	Use:   "load <relation> <file>",
	Short: "Load integers (one per line) into a relation heap file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		relName, inPath := args[0], args[1]
		if loadKeyOffset < 0 || loadKeyOffset+4 > recordSize {
			return errors.Errorf("key offset %d outside record", loadKeyOffset)
		}

		in, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer in.Close()

		mgr, sched := newPool()
		defer sched.Close()

		heap, err := relation.CreateHeapFile(relName, recordSize, mgr)
		if err != nil {
			return err
		}

		count := 0
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			key, err := strconv.ParseInt(line, 10, 32)
			if err != nil {
				return errors.Wrapf(err, "line %d", count+1)
			}

			record := make([]byte, recordSize)
			binary.LittleEndian.PutUint32(record[loadKeyOffset:], uint32(int32(key)))
			if _, err := heap.Insert(record); err != nil {
				return err
			}
			count++
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		if err := heap.Close(); err != nil {
			return err
		}

		log.WithFields(logrus.Fields{"relation": relName, "records": count}).Info("relation loaded")
		return mgr.Close()
	},
}

func init() {
	loadCmd.Flags().IntVar(&loadKeyOffset, "offset", 0, "byte offset of the key within each record")
}

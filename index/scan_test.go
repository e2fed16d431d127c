package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowdb/burrow/storage/disk"
)

func TestScan(t *testing.T) {
	t.Run("bounds and operators are validated", func(t *testing.T) {
		ix := newTestIndex(t, "emp")

		assert.ErrorIs(t, ix.StartScan(10, GTE, 5, LTE), ErrBadScanRange)
		assert.ErrorIs(t, ix.StartScan(1, LT, 5, LTE), ErrBadOpcodes)
		assert.ErrorIs(t, ix.StartScan(1, GTE, 5, GT), ErrBadOpcodes)
	})

	t.Run("scan next before start scan fails", func(t *testing.T) {
		ix := newTestIndex(t, "emp")

		_, err := ix.ScanNext()
		assert.ErrorIs(t, err, ErrScanNotInitialized)
		assert.ErrorIs(t, ix.EndScan(), ErrScanNotInitialized)
	})

	t.Run("an empty index completes on the first next", func(t *testing.T) {
		ix := newTestIndex(t, "emp")

		require.NoError(t, ix.StartScan(0, GTE, 100, LTE))

		_, err := ix.ScanNext()
		assert.ErrorIs(t, err, ErrIndexScanCompleted)

		// completion is sticky and releases the cursor exactly once
		_, err = ix.ScanNext()
		assert.ErrorIs(t, err, ErrIndexScanCompleted)
		assert.NoError(t, ix.EndScan())
	})

	t.Run("equal bounds need inclusive operators on both ends", func(t *testing.T) {
		ix := newTestIndex(t, "emp")
		for _, key := range []int32{10, 20, 20, 30} {
			require.NoError(t, ix.Insert(key, rid(key)))
		}

		assert.Len(t, collect(t, ix, 20, GTE, 20, LTE), 2)
		assert.Empty(t, collect(t, ix, 20, GT, 20, LTE))
		assert.Empty(t, collect(t, ix, 20, GTE, 20, LT))
		assert.Empty(t, collect(t, ix, 20, GT, 20, LT))
	})

	t.Run("strict and inclusive bounds differ by one entry", func(t *testing.T) {
		ix := newTestIndex(t, "emp")
		for key := int32(1); key <= 10; key++ {
			require.NoError(t, ix.Insert(key, rid(key)))
		}

		assert.Len(t, collect(t, ix, 3, GTE, 7, LTE), 5)
		assert.Len(t, collect(t, ix, 3, GT, 7, LTE), 4)
		assert.Len(t, collect(t, ix, 3, GTE, 7, LT), 4)
		assert.Len(t, collect(t, ix, 3, GT, 7, LT), 3)
	})

	t.Run("a range past all keys is empty", func(t *testing.T) {
		ix := newTestIndex(t, "emp")
		for key := int32(1); key <= 5; key++ {
			require.NoError(t, ix.Insert(key, rid(key)))
		}

		assert.Empty(t, collect(t, ix, 50, GTE, 90, LTE))
	})

	t.Run("the cursor crosses leaf boundaries", func(t *testing.T) {
		ix := newTestIndex(t, "emp")
		for key := int32(1); key <= 13; key++ {
			require.NoError(t, ix.Insert(key, rid(key)))
		}

		got := collect(t, ix, 0, GTE, 100, LTE)
		require.Len(t, got, 13)
		for i, r := range got {
			assert.Equal(t, rid(int32(i+1)), r)
		}
	})

	t.Run("the cursor holds exactly one pin while scanning", func(t *testing.T) {
		ix := newTestIndex(t, "emp")
		for key := int32(1); key <= 13; key++ {
			require.NoError(t, ix.Insert(key, rid(key)))
		}

		require.NoError(t, ix.StartScan(1, GTE, 13, LTE))
		_, err := ix.ScanNext()
		require.NoError(t, err)
		assert.Equal(t, 1, ix.mgr.PoolStats().Pinned)

		require.NoError(t, ix.EndScan())
		assert.Equal(t, 0, ix.mgr.PoolStats().Pinned)
	})

	t.Run("starting a scan ends the previous one", func(t *testing.T) {
		ix := newTestIndex(t, "emp")
		for key := int32(1); key <= 13; key++ {
			require.NoError(t, ix.Insert(key, rid(key)))
		}

		require.NoError(t, ix.StartScan(1, GTE, 13, LTE))
		_, err := ix.ScanNext()
		require.NoError(t, err)

		require.NoError(t, ix.StartScan(5, GTE, 6, LTE))
		assert.Equal(t, 1, ix.mgr.PoolStats().Pinned)

		r, err := ix.ScanNext()
		require.NoError(t, err)
		assert.Equal(t, rid(5), r)
		require.NoError(t, ix.EndScan())
	})

	t.Run("scan range gathers the whole result", func(t *testing.T) {
		ix := newTestIndex(t, "emp")
		for key := int32(1); key <= 10; key++ {
			require.NoError(t, ix.Insert(key, rid(key)))
		}

		rids, err := ix.ScanRange(2, GTE, 5, LTE)
		require.NoError(t, err)
		assert.Equal(t, []disk.RecordID{rid(2), rid(3), rid(4), rid(5)}, rids)
		assert.Equal(t, 0, ix.mgr.PoolStats().Pinned)
	})

	t.Run("duplicates spanning a split are all reached", func(t *testing.T) {
		ix := newTestIndex(t, "emp")

		for i := 0; i < 10; i++ {
			require.NoError(t, ix.Insert(7, disk.RecordID{PageNo: uint32(i + 1), SlotNo: 0}))
		}

		assert.Len(t, collect(t, ix, 7, GTE, 7, LTE), 10)
		assert.Len(t, collect(t, ix, 6, GT, 8, LT), 10)
	})
}

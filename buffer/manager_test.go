package buffer

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowdb/burrow/storage/disk"
)

func TestManager(t *testing.T) {
	t.Run("reads a page from disk", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "hello, world!")

		data, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		assert.Equal(t, "hello, world!", string(data[:13]))

		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))
	})

	t.Run("a second read hits the pool without IO", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "cached")

		data, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))

		// change the bytes behind the pool's back; a hit must not see them
		stale, err := pf.ReadPage(pageNo)
		require.NoError(t, err)
		copy(stale.Data, []byte("zapped"))
		require.NoError(t, pf.WritePage(stale))

		data, err = mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		assert.Equal(t, "cached", string(data[:6]))
		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))
	})

	t.Run("eviction under pressure", func(t *testing.T) {
		mgr, pf := newTestPool(t, 3)
		var pageNos []uint32
		for _, s := range []string{"P1", "P2", "P3", "P4"} {
			pageNos = append(pageNos, seedPage(t, pf, s))
		}

		for _, pageNo := range pageNos[:3] {
			_, err := mgr.ReadPage(pf, pageNo)
			require.NoError(t, err)
		}

		// all frames pinned: the fourth read finds no victim
		_, err := mgr.ReadPage(pf, pageNos[3])
		assert.ErrorIs(t, err, ErrBufferExceeded)

		// and the failure had no side effects on resident pages
		for _, pageNo := range pageNos[:3] {
			idx, ok := mgr.table.lookup(pf.ID(), pageNo)
			require.True(t, ok)
			assert.Equal(t, 1, mgr.frames[idx].pinCount)
		}

		require.NoError(t, mgr.UnpinPage(pf, pageNos[0], false))

		_, err = mgr.ReadPage(pf, pageNos[3])
		require.NoError(t, err)

		// P1 gave up its frame
		_, ok := mgr.table.lookup(pf.ID(), pageNos[0])
		assert.False(t, ok)
	})

	t.Run("dirty pages are written back on eviction", func(t *testing.T) {
		mgr, pf := newTestPool(t, 1)
		first := seedPage(t, pf, "")
		second := seedPage(t, pf, "")

		data, err := mgr.ReadPage(pf, first)
		require.NoError(t, err)
		copy(data, []byte("dirtied"))
		require.NoError(t, mgr.UnpinPage(pf, first, true))

		// the only frame is reassigned, forcing write-back
		_, err = mgr.ReadPage(pf, second)
		require.NoError(t, err)
		require.NoError(t, mgr.UnpinPage(pf, second, false))

		onDisk, err := pf.ReadPage(first)
		require.NoError(t, err)
		assert.Equal(t, "dirtied", string(onDisk.Data[:7]))
	})

	t.Run("alloc page installs a pinned frame", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)

		pageNo, data, err := mgr.AllocPage(pf)
		require.NoError(t, err)
		assert.NotEqual(t, disk.InvalidPageNo, pageNo)

		copy(data, []byte("fresh"))
		require.NoError(t, mgr.UnpinPage(pf, pageNo, true))

		stats := mgr.PoolStats()
		assert.Equal(t, 1, stats.Valid)
		assert.Equal(t, 0, stats.Pinned)
		assert.Equal(t, 1, stats.Dirty)
	})

	t.Run("flush writes dirty pages and empties the file's frames", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)

		pageNo, data, err := mgr.AllocPage(pf)
		require.NoError(t, err)
		copy(data, []byte("persist me"))
		require.NoError(t, mgr.UnpinPage(pf, pageNo, true))

		require.NoError(t, mgr.FlushFile(pf))

		for _, frame := range mgr.frames {
			assert.False(t, frame.valid && frame.file == pf)
		}

		onDisk, err := pf.ReadPage(pageNo)
		require.NoError(t, err)
		assert.Equal(t, "persist me", string(onDisk.Data[:10]))
	})

	t.Run("flush aborts on a pinned page", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "held")

		_, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)

		assert.ErrorIs(t, mgr.FlushFile(pf), ErrPagePinned)

		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))
		assert.NoError(t, mgr.FlushFile(pf))
	})

	t.Run("flush only touches the given file", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		other := createTestFile(t)
		pageNo := seedPage(t, pf, "mine")
		otherNo := seedPage(t, other, "theirs")

		_, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))
		_, err = mgr.ReadPage(other, otherNo)
		require.NoError(t, err)
		require.NoError(t, mgr.UnpinPage(other, otherNo, false))

		require.NoError(t, mgr.FlushFile(pf))

		_, ok := mgr.table.lookup(other.ID(), otherNo)
		assert.True(t, ok)
	})

	t.Run("flush flags a corrupted frame table", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "x")

		_, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))

		// an invalid frame still claiming the file is corruption
		idx, ok := mgr.table.lookup(pf.ID(), pageNo)
		require.True(t, ok)
		mgr.frames[idx].valid = false

		assert.ErrorIs(t, mgr.FlushFile(pf), ErrBadBuffer)
	})

	t.Run("dispose of a non resident page still deletes it", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "cold")

		require.NoError(t, mgr.DisposePage(pf, pageNo))

		fresh, err := pf.AllocatePage()
		require.NoError(t, err)
		assert.Equal(t, pageNo, fresh.No)
	})

	t.Run("unpinning an unpinned page is an accounting bug", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "x")

		_, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))

		assert.ErrorIs(t, mgr.UnpinPage(pf, pageNo, false), ErrPageNotPinned)
	})

	t.Run("unpinning a non resident page is a no-op", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)

		assert.NoError(t, mgr.UnpinPage(pf, 99, false))
	})

	t.Run("dispose refuses a pinned page", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "pinned")

		_, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)

		assert.ErrorIs(t, mgr.DisposePage(pf, pageNo), ErrPagePinned)
	})

	t.Run("dispose clears the frame and deletes the page", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "doomed")

		_, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		require.NoError(t, mgr.UnpinPage(pf, pageNo, false))

		require.NoError(t, mgr.DisposePage(pf, pageNo))

		_, ok := mgr.table.lookup(pf.ID(), pageNo)
		assert.False(t, ok)

		// the page number is free for reallocation
		fresh, err := pf.AllocatePage()
		require.NoError(t, err)
		assert.Equal(t, pageNo, fresh.No)
	})

	t.Run("close writes back dirty frames", func(t *testing.T) {
		mgr, pf := newTestPool(t, 5)
		pageNo := seedPage(t, pf, "")

		data, err := mgr.ReadPage(pf, pageNo)
		require.NoError(t, err)
		copy(data, []byte("at shutdown"))
		require.NoError(t, mgr.UnpinPage(pf, pageNo, true))

		require.NoError(t, mgr.Close())

		onDisk, err := pf.ReadPage(pageNo)
		require.NoError(t, err)
		assert.Equal(t, "at shutdown", string(onDisk.Data[:11]))
	})

	t.Run("hash and frames stay consistent", func(t *testing.T) {
		mgr, pf := newTestPool(t, 4)
		var pageNos []uint32
		for i := 0; i < 8; i++ {
			pageNos = append(pageNos, seedPage(t, pf, "w"))
		}

		for _, pageNo := range pageNos {
			_, err := mgr.ReadPage(pf, pageNo)
			require.NoError(t, err)
			require.NoError(t, mgr.UnpinPage(pf, pageNo, false))
		}

		// every valid frame is in the hash and points back at itself
		for i, frame := range mgr.frames {
			if !frame.valid {
				continue
			}
			idx, ok := mgr.table.lookup(frame.file.ID(), frame.pageNo)
			assert.True(t, ok)
			assert.Equal(t, i, idx)
		}
	})
}

func newTestPool(t *testing.T, frames int) (*Manager, *disk.PageFile) {
	t.Helper()

	sched := disk.NewScheduler()
	t.Cleanup(sched.Close)
	return NewManager(frames, sched), createTestFile(t)
}

func createTestFile(t *testing.T) *disk.PageFile {
	t.Helper()

	pf, err := disk.OpenPageFile(path.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pf.Close() })
	return pf
}

// seedPage writes a page directly through the store, bypassing the pool.
func seedPage(t *testing.T, pf *disk.PageFile, content string) uint32 {
	t.Helper()

	page, err := pf.AllocatePage()
	require.NoError(t, err)
	copy(page.Data, []byte(content))
	require.NoError(t, pf.WritePage(page))
	return page.No
}

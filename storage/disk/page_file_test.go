package disk

import (
	"bytes"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageFile(t *testing.T) {
	t.Run("new file has no first page", func(t *testing.T) {
		pf := createPageFile(t)

		assert.Equal(t, InvalidPageNo, pf.FirstPageNo())
		assert.Equal(t, uint32(0), pf.NumPages())
	})

	t.Run("allocation numbers pages from one", func(t *testing.T) {
		pf := createPageFile(t)

		p1, err := pf.AllocatePage()
		require.NoError(t, err)
		p2, err := pf.AllocatePage()
		require.NoError(t, err)

		assert.Equal(t, uint32(1), p1.No)
		assert.Equal(t, uint32(2), p2.No)
		assert.Equal(t, uint32(1), pf.FirstPageNo())
	})

	t.Run("pages round trip through disk", func(t *testing.T) {
		pf := createPageFile(t)

		page, err := pf.AllocatePage()
		require.NoError(t, err)
		copy(page.Data, []byte("hello, world!"))
		require.NoError(t, pf.WritePage(page))

		got, err := pf.ReadPage(page.No)
		require.NoError(t, err)
		assert.Equal(t, page.Data, got.Data)
	})

	t.Run("allocate zeroes a reused page", func(t *testing.T) {
		pf := createPageFile(t)

		page, err := pf.AllocatePage()
		require.NoError(t, err)
		copy(page.Data, []byte("stale"))
		require.NoError(t, pf.WritePage(page))

		require.NoError(t, pf.DeletePage(page.No))

		fresh, err := pf.AllocatePage()
		require.NoError(t, err)
		assert.Equal(t, page.No, fresh.No)
		assert.True(t, bytes.Equal(fresh.Data, make([]byte, PageSize)))
	})

	t.Run("reading an unknown page fails", func(t *testing.T) {
		pf := createPageFile(t)

		_, err := pf.ReadPage(7)
		assert.Error(t, err)
	})

	t.Run("exists tracks the file on disk", func(t *testing.T) {
		name := path.Join(t.TempDir(), "probe.db")
		assert.False(t, Exists(name))

		pf, err := OpenPageFile(name, true)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pf.Close() })

		assert.True(t, Exists(name))
	})

	t.Run("each open file has a distinct identity", func(t *testing.T) {
		a := createPageFile(t)
		b := createPageFile(t)

		assert.NotEqual(t, a.ID(), b.ID())
	})
}

func createPageFile(t *testing.T) *PageFile {
	t.Helper()

	pf, err := OpenPageFile(path.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pf.Close() })
	return pf
}

package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	t.Run("serves reads and writes in order", func(t *testing.T) {
		pf := createPageFile(t)
		sched := NewScheduler()
		t.Cleanup(sched.Close)

		page, err := sched.Allocate(pf)
		require.NoError(t, err)

		copy(page.Data, []byte("through the scheduler"))
		require.NoError(t, sched.Write(pf, page))

		got, err := sched.Read(pf, page.No)
		require.NoError(t, err)
		assert.Equal(t, page.Data, got.Data)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		pf := createPageFile(t)
		sched := NewScheduler()
		t.Cleanup(sched.Close)

		_, err := sched.Read(pf, 42)
		assert.Error(t, err)
	})

	t.Run("delete releases the page for reuse", func(t *testing.T) {
		pf := createPageFile(t)
		sched := NewScheduler()
		t.Cleanup(sched.Close)

		page, err := sched.Allocate(pf)
		require.NoError(t, err)
		require.NoError(t, sched.Delete(pf, page.No))

		again, err := sched.Allocate(pf)
		require.NoError(t, err)
		assert.Equal(t, page.No, again.No)
	})
}

package syncengine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerDrainClearsAndKeepsOrder(t *testing.T) {
	l := NewLedger[string](StaticIdentity("u1"))

	assert.True(t, l.MarkDirty("b"))
	assert.True(t, l.MarkDirty("a"))
	assert.True(t, l.MarkDirty("b"))
	assert.Equal(t, 2, l.Len())
	assert.True(t, l.Contains("a"))

	assert.Equal(t, []string{"b", "a"}, l.Drain())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Drain())
}

func TestLedgerWithoutIdentityRecordsNothing(t *testing.T) {
	l := NewLedger[string](StaticIdentity(""))
	assert.False(t, l.MarkDirty("a"))
	assert.Equal(t, 0, l.Len())
}

func TestLedgerRequeueMergesWithNewMarks(t *testing.T) {
	l := NewLedger[PageKey](StaticIdentity("u1"))
	l.MarkDirty(PageKey{"nb", 0})
	drained := l.Drain()

	l.MarkDirty(PageKey{"nb", 1})
	l.Requeue(drained...)
	l.Requeue(PageKey{"nb", 1})

	assert.Equal(t, 2, l.Len())
	assert.True(t, l.Contains(PageKey{"nb", 0}))
}

func TestLedgerConcurrentMarks(t *testing.T) {
	l := NewLedger[int](StaticIdentity("u1"))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.MarkDirty(i % 10)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, l.Len())
}

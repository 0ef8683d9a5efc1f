package frontier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connoryin/crawler/internal/urlmodel"
)

func TestInsertAndLen(t *testing.T) {
	f := New()
	f.Insert(urlmodel.MustParse("http://a/"))
	f.Insert(urlmodel.MustParse("http://b/"))
	assert.Equal(t, 2, f.Len())
}

func TestWaitForSizeUnblocksOnInsert(t *testing.T) {
	f := New()
	done := make(chan bool, 1)
	go func() { done <- f.WaitForSize(3) }()

	f.Insert(urlmodel.MustParse("http://a/"))
	f.Insert(urlmodel.MustParse("http://b/"))
	select {
	case <-done:
		t.Fatal("WaitForSize returned before size reached")
	case <-time.After(20 * time.Millisecond):
	}

	f.Insert(urlmodel.MustParse("http://c/"))
	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitForSize never unblocked")
	}
}

func TestCloseUnblocksWaiters(t *testing.T) {
	f := New()
	done := make(chan bool, 1)
	go func() { done <- f.WaitForSize(10) }()

	time.Sleep(10 * time.Millisecond)
	f.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock WaitForSize")
	}
}

func TestGCLockedEvictsToTarget(t *testing.T) {
	f := New()
	for i := 0; i < 10; i++ {
		f.Insert(urlmodel.MustParse("http://example.com/" + string(rune('a'+i))))
	}
	f.Lock()
	f.GCLocked(4)
	size := f.LenLocked()
	f.Unlock()
	assert.Equal(t, 4, size)
}

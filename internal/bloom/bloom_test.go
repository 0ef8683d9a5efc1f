package bloom

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoFalseNegativesAfterInsert(t *testing.T) {
	f := New(1000, 1e-3)
	for i := 0; i < 100; i++ {
		f.Insert(fmt.Sprintf("%d", i))
	}
	for i := 0; i < 100; i++ {
		assert.True(t, f.Contains(fmt.Sprintf("%d", i)))
	}
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	src := New(1000, 1e-3)
	for i := 0; i < 500; i++ {
		src.Insert(fmt.Sprintf("key-%d", i))
	}

	var buf bytes.Buffer
	_, err := src.WriteTo(&buf)
	require.NoError(t, err)

	dst := New(1000, 1e-3)
	_, err = dst.ReadFrom(&buf)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		assert.Equal(t, src.Contains(key), dst.Contains(key))
	}
}

func TestClear(t *testing.T) {
	f := New(100, 1e-3)
	f.Insert("a")
	require.True(t, f.Contains("a"))
	f.Clear()
	assert.False(t, f.Contains("a"))
	assert.Equal(t, 0, f.Size())
}

func TestReadFromShortStreamFails(t *testing.T) {
	f := New(10000, 1e-3)
	_, err := f.ReadFrom(bytes.NewReader([]byte{0x01}))
	assert.Error(t, err)
}

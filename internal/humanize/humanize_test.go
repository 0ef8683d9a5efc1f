package humanize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileSizeFormatsThreeSignificantDigits(t *testing.T) {
	assert.Equal(t, "512 B", FileSize(512))
	assert.Equal(t, "512 KB", FileSize(512*1024))
	assert.Equal(t, "512 MB", FileSize(512*1024*1024))
	assert.True(t, strings.HasPrefix(FileSize(50000), "48.8"))
}

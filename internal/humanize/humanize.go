// Package humanize provides FileSize, ported from
// original_source/include/core/file_system.h. See DESIGN.md for why this
// stays a direct port instead of a library call.
package humanize

import (
	"fmt"
	"strconv"
	"strings"
)

var suffixes = [...]string{"B", "KB", "MB", "GB", "TB"}

// FileSize renders numBytes with three significant digits and the
// smallest suffix that keeps the mantissa <= 1024, matching the original's
// `std::setprecision(3)` loop exactly (512 -> "512 B", 512*1024 -> "512 KB",
// 50000 -> "48.8 KB").
func FileSize(numBytes int) string {
	size := float64(numBytes)
	idx := 0
	for size > 1024 && idx < len(suffixes)-1 {
		size /= 1024
		idx++
	}
	return fmt.Sprintf("%s %s", formatPrecision3(size), suffixes[idx])
}

// formatPrecision3 mimics C++'s default `std::setprecision(3)` behavior:
// three significant digits, trailing zeros and a trailing decimal point
// trimmed.
func formatPrecision3(v float64) string {
	s := strconv.FormatFloat(v, 'g', 3, 64)
	if strings.Contains(s, "e") {
		s = strconv.FormatFloat(v, 'f', 0, 64)
	}
	return s
}

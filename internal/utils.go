package internal

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMemorySize parses a human-readable byte count like "100", "64k",
// "100M" or "2g". Suffixes are case-insensitive and 1024-based.
func ParseMemorySize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty memory size")
	}

	var mult uint64 = 1
	switch s[len(s)-1] {
	case 'b', 'B':
		s = s[:len(s)-1]
	case 'k', 'K':
		mult = 1024
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %w", s, err)
	}
	return n * mult, nil
}

func StringContains(s []string, sub string) bool {
	for _, c := range s {
		if c == sub {
			return true
		}
	}
	return false
}

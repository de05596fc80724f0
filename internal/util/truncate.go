package util

import "fmt"

// DefaultLogMaxLen caps logged question and answer bodies at 1KB.
const DefaultLogMaxLen = 1024

// TruncateLog shortens long strings for log lines. Patient questions carry
// the full member snapshot, so logging them whole would bloat the log fast.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes applies TruncateLog with DefaultLogMaxLen to a byte slice.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}

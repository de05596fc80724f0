package util

import (
	"os"
	"strings"
)

// IsVerbose reports whether verbose request/response logging is enabled
// via the MEDASSIST_VERBOSE environment variable.
func IsVerbose() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("MEDASSIST_VERBOSE"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

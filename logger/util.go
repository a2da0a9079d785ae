package logger

import (
	"fmt"
	"strings"
)

func sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func joinPrefixes(prefixes []string) string {
	return strings.Join(prefixes, ".")
}

// Package env reads process settings that must be known before config.Load,
// such as the log format.
package env

import (
	"os"
	"strconv"
	"strings"
)

// String returns the trimmed value of key, or fallback when it is unset or blank.
func String(key, fallback string) string {
	if raw, ok := os.LookupEnv(key); ok {
		if v := strings.TrimSpace(raw); v != "" {
			return v
		}
	}
	return fallback
}

// Bool parses key with strconv.ParseBool. Unparsable values yield fallback.
func Bool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(String(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

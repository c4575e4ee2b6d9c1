// Package logging configures the process-wide gommon logger. Components log
// through github.com/labstack/gommon/log directly with a "[Component]" prefix.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = `${time_rfc3339} ${level}`

// ParseLevel maps a config string to a gommon level. Unknown values mean INFO.
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none", "quiet":
		return log.OFF
	}
	return log.INFO
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error", "off", "none", "quiet":
		return true
	}
	return false
}

// Setup sets the global level and header. debug forces DEBUG.
func Setup(level string, debug bool) {
	lvl := ParseLevel(level)
	if debug {
		lvl = log.DEBUG
	}
	log.SetLevel(lvl)
	log.SetHeader(header)
	log.SetOutput(os.Stderr)
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

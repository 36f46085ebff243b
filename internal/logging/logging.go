// Package logging builds the leveled, component-prefixed loggers used
// throughout the service.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gologme/log"
)

// levelOrder lists levels from most to least severe.
var levelOrder = []string{"error", "warn", "info", "debug", "trace"}

// Levels returns the levels enabled for a threshold. Unknown thresholds
// enable error, warn and info.
func Levels(threshold string) []string {
	threshold = strings.ToLower(strings.TrimSpace(threshold))
	if threshold == "warning" {
		threshold = "warn"
	}
	for i, l := range levelOrder {
		if l == threshold {
			return levelOrder[:i+1]
		}
	}
	return levelOrder[:3]
}

// New returns a logger writing to w with a colored "[ component ]" prefix
// and every level up to threshold enabled.
func New(w io.Writer, component, threshold string) *log.Logger {
	yellow := color.New(color.FgYellow).SprintfFunc()
	l := log.New(w, fmt.Sprintf("[ %s ] ", yellow(component)), log.LstdFlags|log.Lmsgprefix)
	for _, lvl := range Levels(threshold) {
		l.EnableLevel(lvl)
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// internal/util/util.go
package util

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// TruncateRunes truncates a string to a maximum number of runes,
// appending an ellipsis if truncated.
func TruncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}

// OneLine collapses all whitespace runs, including newlines, into single spaces.
func OneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// TruncateWidth shortens text to at most width terminal cells, appending an ellipsis
// when something was cut. Wide runes (CJK, emoji) count as two cells.
func TruncateWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

// Snippet returns a single-line preview of text that fits in width cells.
func Snippet(text string, width int) string {
	return TruncateWidth(OneLine(text), width)
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

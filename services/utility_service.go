package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

var digitsRegex = regexp.MustCompile(`\d+`)

// NormalizeCellText trims a table cell, drops carriage returns and folds newlines into spaces
func NormalizeCellText(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}

// CollapseWhitespace squeezes runs of whitespace into single spaces
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// ParseLeadingInt extracts the first run of digits, ignoring thousands separators
func ParseLeadingInt(text string) (int, bool) {
	match := digitsRegex.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// sleepContext idles for d unless ctx ends first
func sleepContext(ctx context.Context, d time.Duration) error {
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

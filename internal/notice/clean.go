package notice

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// colour codes carry an optional fg[,bg] pair
	ircControl = regexp.MustCompile(`\x03(?:\d{1,2}(?:,\d{1,2})?)?|[\x01\x02\x0F\x16\x1D\x1F\x{FFFD}]`)

	quotes = strings.NewReplacer("’", "'", "‘", "'", "´", "'", "`", "'")
)

// Clean strips IRC formatting and control characters, NFC-normalizes the
// text and trims surrounding whitespace.
func Clean(text string) string {
	text = ircControl.ReplaceAllString(text, "")
	return strings.TrimSpace(norm.NFC.String(text))
}

// fold prepares free-text reasons for prefix comparison. A Caser is not safe
// for concurrent use, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(quotes.Replace(strings.TrimSpace(s)))
}

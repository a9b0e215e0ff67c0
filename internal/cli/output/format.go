package output

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KeyValue is one line of a KeyValues block.
type KeyValue struct {
	Key   string
	Value string
}

// FormatHeader returns a markdown header of the given level.
func FormatHeader(level int, title string) string {
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue returns a markdown list item.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatCodeBlock wraps content in a fenced code block.
func FormatCodeBlock(lang, content string) string {
	return "```" + lang + "\n" + strings.TrimRight(content, "\n") + "\n```"
}

// Title capitalizes each word: "time_to_peak" -> "Time To Peak".
func Title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// People formats a head count rounded to whole people with thousands
// separators.
func People(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return humanize.Commaf(math.Round(v))
}

// Percent formats a fraction as a percentage.
func Percent(frac float64) string {
	return fmt.Sprintf("%.2f%%", 100*frac)
}

// Day formats a time in days.
func Day(t float64) string {
	return "day " + humanize.FtoaWithDigits(t, 1)
}

// Count formats an integer with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

package catalog

import (
	"regexp"
	"strings"
)

type labelRule struct {
	re   *regexp.Regexp
	repl string
}

var labelRules = []labelRule{
	{regexp.MustCompile(`(?i)\biphone\b`), "iPhone"},
	{regexp.MustCompile(`(?i)\bredmi\b`), "Redmi"},
	{regexp.MustCompile(`(?i)\bpoco\b`), "Poco"},
	{regexp.MustCompile(`(?i)\boppo\b`), "Oppo"},
	{regexp.MustCompile(`(?i)\ba(\d+)`), "A${1}"},
	{regexp.MustCompile(`(?i)\bs(\d+)`), "S${1}"},
	{regexp.MustCompile(`(?i)\bm(\d+)`), "M${1}"},
	{regexp.MustCompile(`(?i)\bpro\b`), "Pro"},
	{regexp.MustCompile(`(?i)\bmax\b`), "Max"},
	{regexp.MustCompile(`(?i)\bplus\b`), "Plus"},
	{regexp.MustCompile(`(?i)\bultra\b`), "Ultra"},
	{regexp.MustCompile(`(?i)\bfe\b`), "FE"},
	{regexp.MustCompile(`(?i)\bse\b`), "SE"},
	{regexp.MustCompile(`(?i)\b4g\b`), "4G"},
	{regexp.MustCompile(`(?i)\b5g\b`), "5G"},
}

// ModelLabel turns a model key such as "s25_ultra" into the name shown to
// shoppers, "S25 Ultra". Keys stay the values sent with orders.
func ModelLabel(model string) string {
	s := strings.ReplaceAll(model, "_", " ")
	for _, r := range labelRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

package rules

import (
	"regexp"
	"sort"
	"strings"
)

var (
	toPlace     = regexp.MustCompile(`\bto\s+([A-Z][a-zA-Z\s]*[a-zA-Z])`)
	namedGroups = regexp.MustCompile(`([A-Z][a-zA-Z\s]*[a-zA-Z])\s+products`)
)

// bolder highlights product names, destinations and product groups in escaped message text
type bolder struct {
	products *regexp.Regexp
}

func newBolder(products []string) *bolder {
	words := make([]string, 0, len(products))
	for _, p := range products {
		if p = strings.TrimSpace(p); p != "" {
			words = append(words, regexp.QuoteMeta(p))
		}
	}
	if len(words) == 0 {
		return &bolder{}
	}
	// Longest first so "Delta 8" wins over a shorter prefix
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return &bolder{products: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)}
}

func (b *bolder) bold(msg string) string {
	if b.products != nil {
		msg = b.products.ReplaceAllString(msg, "<strong>$1</strong>")
	}
	msg = toPlace.ReplaceAllString(msg, "to <strong>$1</strong>")
	msg = namedGroups.ReplaceAllString(msg, "<strong>$1</strong> products")
	return msg
}

package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

var folds = strings.NewReplacer(
	"ä", "a", "á", "a", "à", "a", "â", "a", "å", "a",
	"ç", "c", "é", "e", "è", "e", "ê", "e", "ë", "e",
	"ğ", "g", "í", "i", "ì", "i", "î", "i", "ï", "i", "ı", "i",
	"ñ", "n", "ö", "o", "ó", "o", "ò", "o", "ô", "o",
	"ş", "s", "ß", "ss", "ü", "u", "ú", "u", "ù", "u", "û", "u",
)

// FromName builds a URL slug; fallback is used when nothing is left.
func FromName(s, fallback string) string {
	s = folds.Replace(strings.ToLower(strings.TrimSpace(s)))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}

package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallbackSlug = "blog"

var slugReplacer = strings.NewReplacer(
	"&", " and ",
	"$", " dollar ",
	"%", " percent ",
	"<", " less ",
	">", " greater ",
	"|", " or ",
	"€", " euro ",
	"£", " pound ",
	"¥", " yen ",
	"₹", " indian rupee ",
	"ß", "ss",
	"æ", "ae",
	"Æ", "ae",
	"œ", "oe",
	"Œ", "oe",
	"ø", "o",
	"Ø", "o",
	"đ", "d",
	"Đ", "d",
	"ł", "l",
	"Ł", "l",
)

// Slugify folds diacritics, lower-cases, and joins the remaining ASCII
// letter and digit runs with '-'. Titles with no such runs yield "blog".
func Slugify(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		slugReplacer.Replace(title),
	)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}

	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

package crawler

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuation maps typographic runes to their plain ASCII spelling.
var punctuation = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", "<<", "»", ">>",
	"‘", "'", "’", "'", "‚", "'", "′", "'", "″", `"`,
	"–", "-", "—", "--", "−", "-", "‐", "-", "‑", "-",
	"…", "...", "\u00a0", " ", "\u2009", " ", "\u200b", "",
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "ł", "l", "Ł", "L", "ð", "d", "Ð", "D",
	"þ", "th", "Þ", "Th",
)

// Normalize transliterates text to ASCII where a fallback exists and trims
// surrounding whitespace. Runes without an ASCII spelling are kept as NFC.
func Normalize(s string) string {
	s = punctuation.Replace(s)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(out)
}

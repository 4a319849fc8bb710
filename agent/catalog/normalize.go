package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes Arabic diacritics (fatha, damma, kasra, shadda, sukun
// and friends) by decomposing and dropping all combining marks.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// orthographic collapses letter variants that users type interchangeably.
var orthographic = strings.NewReplacer(
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ٱ", "ا",
	"ى", "ي",
	"ة", "ه",
	"ئ", "ي",
	"ؤ", "و",
	"ـ", "", // tatweel
)

// foodSpelling maps common phonetic misspellings of menu vocabulary onto the
// canonical catalog spelling. Ordered longest-first so compound fixes win.
var foodSpelling = []struct{ from, to string }{
	{"برقر", "برجر"},
	{"بركر", "برجر"},
	{"هامبرقر", "برجر"},
	{"هامبرجر", "برجر"},
	{"بيبسى", "بيبسي"},
	{"ببسي", "بيبسي"},
	{"كولا", "كوكاكولا"},
	{"شاورمه", "شاورما"},
	{"شورما", "شاورما"},
	{"فرايز", "بطاطس"},
	{"فرنش فرايز", "بطاطس"},
	{"تشيكن", "دجاج"},
	{"تشيز", "جبن"},
	{"تشييز", "جبن"},
	{"سندوتش", "ساندويتش"},
	{"سندويش", "ساندويتش"},
	{"ساندوتش", "ساندويتش"},
}

// Normalize maps raw user or catalog text onto the canonical form all
// matching stages compare against. Idempotent.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	out, _, err := transform.String(stripMarks, s)
	if err == nil {
		s = out
	}
	s = orthographic.Replace(s)
	for _, f := range foodSpelling {
		s = strings.ReplaceAll(s, f.from, f.to)
	}
	return strings.Join(strings.Fields(s), " ")
}

// queryPrefixes are ordering phrases users prepend to the actual item name.
var queryPrefixes = []string{
	"ابي", "ابغى", "اريد", "بدي", "عطني", "اعطني", "ممكن", "طلب", "اطلب", "وش عندكم",
}

// NormalizeQuery applies Normalize and then strips leading request phrases
// so "ابغى برجر" searches as "برجر".
func NormalizeQuery(s string) string {
	s = Normalize(s)
	for changed := true; changed; {
		changed = false
		for _, p := range queryPrefixes {
			if strings.HasPrefix(s, p+" ") {
				s = strings.TrimSpace(strings.TrimPrefix(s, p+" "))
				changed = true
			}
		}
	}
	return s
}

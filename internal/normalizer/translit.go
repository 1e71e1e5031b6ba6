package normalizer

import "strings"

var diacriticFold = map[rune]string{
	'š': "s", 'Š': "s",
	'đ': "dj", 'Đ': "dj",
	'č': "c", 'Č': "c",
	'ć': "c", 'Ć': "c",
	'ž': "z", 'Ž': "z",
	'á': "a", 'à': "a", 'â': "a", 'ä': "a", 'å': "a",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'ö': "o",
	'ú': "u", 'ù': "u", 'û': "u", 'ü': "u",
	'ñ': "n", 'ç': "c", 'ß': "ss",

	// Serbian Cyrillic, straight to the folded Latin alphabet so that
	// "Витамин" and "Vitamin" index identically.
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'ђ': "dj", 'е': "e", 'ж': "z", 'з': "z", 'и': "i",
	'ј': "j", 'к': "k", 'л': "l", 'љ': "lj", 'м': "m",
	'н': "n", 'њ': "nj", 'о': "o", 'п': "p", 'р': "r",
	'с': "s", 'т': "t", 'ћ': "c", 'у': "u", 'ф': "f",
	'х': "h", 'ц': "c", 'ч': "c", 'џ': "dz", 'ш': "s",
}

// Fold lowercases and transliterates in one step; index keys and queries go
// through it so both sides agree on the alphabet.
func Fold(s string) string {
	return foldDiacritics(strings.ToLower(s))
}

// foldDiacritics transliterates Serbian latin, Serbian Cyrillic and common
// western diacritics to ASCII so that "šumeće" and "sumece" index
// identically. Input is expected lowercased; uppercase Cyrillic goes through
// strings.ToLower first.
func foldDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := diacriticFold[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

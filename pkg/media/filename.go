package media

import (
	"path"
	"strings"
	"unicode"
)

// MaxFilenameLength bounds the stored original filename, in bytes.
const MaxFilenameLength = 255

// foldRange maps a run of accented Latin-1 letters to one ASCII letter.
type foldRange struct {
	lo, hi rune
	to     rune
}

var latinFolds = []foldRange{
	{'\u00c0', '\u00c5', 'A'}, {'\u00e0', '\u00e5', 'a'},
	{'\u00c8', '\u00cb', 'E'}, {'\u00e8', '\u00eb', 'e'},
	{'\u00cc', '\u00cf', 'I'}, {'\u00ec', '\u00ef', 'i'},
	{'\u00d2', '\u00d6', 'O'}, {'\u00f2', '\u00f6', 'o'},
	{'\u00d9', '\u00dc', 'U'}, {'\u00f9', '\u00fc', 'u'},
	{'\u00c7', '\u00c7', 'C'}, {'\u00e7', '\u00e7', 'c'},
	{'\u00d1', '\u00d1', 'N'}, {'\u00f1', '\u00f1', 'n'},
}

// SanitizeFilename reduces a client-supplied filename to a printable ASCII
// base name. Directory components are dropped, common accented letters are
// folded and anything else non-ASCII becomes '-'.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if b.Len() >= MaxFilenameLength {
			break
		}
		if r < 128 {
			if unicode.IsPrint(r) {
				b.WriteRune(r)
			}
			continue
		}
		b.WriteRune(foldLatin(r))
	}
	return b.String()
}

func foldLatin(r rune) rune {
	for _, f := range latinFolds {
		if r >= f.lo && r <= f.hi {
			return f.to
		}
	}
	return '-'
}

package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Empty", "", ""},
		{"ASCII", "holiday-photo.JPG", "holiday-photo.JPG"},
		{"Spaces", "my cat.png", "my cat.png"},
		{"Accents", "résumé façade ñ.pdf", "resume facade n.pdf"},
		{"NonLatin", "фото.png", "----.png"},
		{"Emoji", "sun☀.gif", "sun-.gif"},
		{"Control", "bad\x00name\n.txt", "badname.txt"},
		{"UnixPath", "../../etc/passwd", "passwd"},
		{"WindowsPath", `C:\Users\me\pic.jpeg`, "pic.jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}

	long := SanitizeFilename(strings.Repeat("a", 400) + ".png")
	assert.Len(t, long, MaxFilenameLength)
}

func TestObjectKey(t *testing.T) {
	key := objectKey(
		[16]byte{1}, [16]byte{2},
		"Résumé.JPG",
	)
	assert.True(t, strings.HasPrefix(key, "media/01000000-0000-0000-0000-000000000000/02000000-"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	assert.False(t, strings.Contains(objectKey([16]byte{1}, [16]byte{2}, "x.verylongextension"), "."))
}

package attachment

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/xid"
)

// KeyGenerator derives blob storage keys of the form
// {task_id}/{xid}-{sanitized base}.{ext}. The xid component is time-ordered
// and unique per call, so two uploads of the same file never share a key.
type KeyGenerator struct {
	newID func() string
}

// NewKeyGenerator returns a KeyGenerator backed by rs/xid.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{newID: func() string { return xid.New().String() }}
}

// Generate returns a fresh storage key for fileName under taskID.
func (g *KeyGenerator) Generate(taskID int64, fileName string) string {
	ext := filepath.Ext(fileName)
	base := sanitizeKeyPart(strings.TrimSuffix(fileName, ext))
	if base == "" {
		base = "file"
	}
	ext = sanitizeKeyPart(strings.TrimPrefix(ext, "."))

	var b strings.Builder
	b.WriteString(strconv.FormatInt(taskID, 10))
	b.WriteByte('/')
	b.WriteString(g.newID())
	b.WriteByte('-')
	b.WriteString(base)
	if ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

// sanitizeKeyPart keeps letters and digits of any script, space, '-', '_' and '.',
// replaces everything else with '_' and collapses whitespace runs.
func sanitizeKeyPart(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return r
		case r == '\t', r == '\n', r == '\r':
			return ' '
		default:
			return '_'
		}
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

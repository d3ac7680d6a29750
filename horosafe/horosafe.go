// Package horosafe holds the small safety guards used at pagekit's edges:
// confining tool paths to a root directory and neutralizing client-supplied
// file names before they reach headers or archive entries.
package horosafe

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxFilenameLen bounds sanitized file names, in bytes.
const MaxFilenameLen = 200

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// SafePath validates that joining base and userInput does not escape base.
// Returns the cleaned path or ErrPathTraversal. An empty base disables the
// check and only cleans userInput.
func SafePath(base, userInput string) (string, error) {
	if base == "" {
		return filepath.Clean(userInput), nil
	}
	if strings.Contains(userInput, "..") {
		return "", ErrPathTraversal
	}
	rel := userInput
	if filepath.IsAbs(userInput) {
		// Absolute input is accepted only when it already lies under base.
		r, err := filepath.Rel(filepath.Clean(base), filepath.Clean(userInput))
		if err != nil || strings.HasPrefix(r, "..") {
			return "", ErrPathTraversal
		}
		rel = r
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+rel))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) &&
		cleaned != filepath.Clean(base) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// SanitizeFilename strips directories, control characters and quoting from a
// client-supplied name. The result is never empty; fallback is used when
// nothing printable is left.
func SanitizeFilename(name, fallback string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '"' || r == ';' || r == ':' || r == '*' || r == '?' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimLeft(out, ".")
	if len(out) > MaxFilenameLen {
		out = truncate(out, MaxFilenameLen)
	}
	if out == "" {
		return fallback
	}
	return out
}

// ContentDisposition returns an attachment header value for filename. The
// filename parameter is always quoted ASCII; names with other characters also
// get an RFC 5987 filename* parameter carrying the UTF-8 name.
func ContentDisposition(filename string) string {
	filename = SanitizeFilename(filename, "download")
	var ascii strings.Builder
	plain := true
	for _, r := range filename {
		switch {
		case r >= 0x80 || r < 0x20 || r == 0x7f:
			ascii.WriteByte('_')
			plain = false
		case r == '"' || r == '\\':
			ascii.WriteByte('_')
		default:
			ascii.WriteRune(r)
		}
	}
	v := `attachment; filename="` + ascii.String() + `"`
	if !plain {
		v += "; filename*=UTF-8''" + extValue(filename)
	}
	return v
}

// extValue percent-encodes s for an RFC 5987 ext-value.
func extValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

// truncate cuts s to at most n bytes without splitting a rune, keeping the
// extension when there is one.
func truncate(s string, n int) string {
	ext := filepath.Ext(s)
	if len(ext) > 16 {
		ext = ""
	}
	stem := s[:len(s)-len(ext)]
	limit := n - len(ext)
	for limit > 0 && limit < len(stem) && !utf8Start(stem[limit]) {
		limit--
	}
	if limit < len(stem) {
		stem = stem[:limit]
	}
	return stem + ext
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

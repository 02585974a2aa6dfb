package javascript

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Unescape decodes the body of a string or template literal.
func Unescape(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			b.WriteByte(c)
			i++
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case 'x':
			if r, ok := hexRune(raw, i+1, 2); ok {
				b.WriteRune(r)
				i += 2
			} else {
				b.WriteByte('x')
			}
		case 'u':
			r, n := unicodeEscape(raw, i+1)
			if n == 0 {
				b.WriteByte('u')
				break
			}
			i += n
			if utf16.IsSurrogate(r) && strings.HasPrefix(raw[i+1:], `\u`) {
				if low, m := unicodeEscape(raw, i+3); m > 0 {
					if pair := utf16.DecodeRune(r, low); pair != utf8.RuneError {
						r = pair
						i += 2 + m
					}
				}
			}
			b.WriteRune(r)
		default:
			r, size := utf8.DecodeRuneInString(raw[i:])
			b.WriteRune(r)
			i += size - 1
		}
		i++
	}
	return b.String()
}

// unicodeEscape reads the digits of \uXXXX or \u{X...} starting at i and
// returns the rune and the number of bytes consumed.
func unicodeEscape(raw string, i int) (rune, int) {
	if i < len(raw) && raw[i] == '{' {
		end := strings.IndexByte(raw[i:], '}')
		if end < 2 {
			return 0, 0
		}
		v, err := strconv.ParseUint(raw[i+1:i+end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0
		}
		return rune(v), end + 1
	}
	if r, ok := hexRune(raw, i, 4); ok {
		return r, 4
	}
	return 0, 0
}

func hexRune(raw string, i, n int) (rune, bool) {
	if i+n > len(raw) {
		return 0, false
	}
	v, err := strconv.ParseUint(raw[i:i+n], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

// Escape encodes text for a literal delimited by quote, a single or double
// quote or a backtick.
func Escape(text, quote string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	template := quote == "`"
	for i, r := range text {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case string(r) == quote:
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\n' && !template:
			b.WriteString(`\n`)
		case r == '$' && template && strings.HasPrefix(text[i+1:], "{"):
			b.WriteString(`\$`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

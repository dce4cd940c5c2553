package ftp

import "strings"

const (
	unsafeChars   = "<>\"#%{}|\\^~[]`' "
	reservedChars = ";/?:@=&"
	upperHex      = "0123456789ABCDEF"
)

// Encode percent-encodes control characters, non-ASCII bytes and the RFC 1738 unsafe and reserved
// characters of s.
func Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x1f || c >= 0x7f || strings.IndexByte(unsafeChars, c) >= 0 || strings.IndexByte(reservedChars, c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Decode replaces every %XX sequence with two valid hex digits by the byte it encodes. Invalid
// sequences are copied verbatim and an encoded NUL is dropped, so the result is never longer than
// s.
func Decode(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := fromHex(s[i+1])
			lo, ok2 := fromHex(s[i+2])
			if ok1 && ok2 {
				if c := hi<<4 | lo; c != 0 {
					b = append(b, c)
				}
				i += 2
				continue
			}
		}
		b = append(b, s[i])
	}
	return string(b)
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

package testclient

import "strings"

// unquoted is every byte SmartQuote leaves alone: ASCII letters, digits
// and punctuation.
const unquoted = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

const upperhex = "0123456789ABCDEF"

// SmartQuote percent-encodes the bytes of s that are not ASCII letters,
// digits or punctuation, leaving URL syntax intact:
//
//	SmartQuote("http://example.com")  // http://example.com
//	SmartQuote("喵.com")              // %E5%96%B5.com
func SmartQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(unquoted, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

package ftp

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePASV returns the data channel address announced in a 227 reply. Both the RFC 959 form
// "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)" and the bare "227 =h1,h2,h3,h4,p1,p2" form are
// understood.
func ParsePASV(text string) (host string, port int, err error) {
	// Skip the status code and the space after it
	if i := strings.IndexByte(text, ' '); i >= 0 {
		text = text[i+1:]
	}
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[i+1:]
	} else if i := strings.IndexByte(text, '='); i >= 0 {
		text = text[i+1:]
	}
	i := strings.IndexAny(text, "0123456789")
	if i < 0 {
		return "", 0, ErrNoPort
	}
	var n [6]int
	s := text[i:]
	for k := range n {
		// Some servers put a space after each comma
		s = strings.TrimLeft(s, " \t")
		j := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j == 0 {
			return "", 0, ErrNoPort
		}
		v, err := strconv.Atoi(s[:j])
		if err != nil {
			return "", 0, ErrNoPort
		}
		n[k] = v
		s = s[j:]
		if k < len(n)-1 {
			if len(s) == 0 || s[0] != ',' {
				return "", 0, ErrNoPort
			}
			s = s[1:]
		}
	}
	for _, h := range n[:4] {
		if h > 255 {
			return "", 0, ErrNoPort
		}
	}
	port = n[4]*256 + n[5]
	if port > 65535 {
		return "", 0, ErrNoPort
	}
	return fmt.Sprintf("%d.%d.%d.%d", n[0], n[1], n[2], n[3]), port, nil
}

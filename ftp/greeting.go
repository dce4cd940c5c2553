package ftp

import "strings"

// Greeting extracts the human readable part of a multi-line 230 login reply. The code prefix of
// every "230" line is blanked, including the final status line, and an empty line ends the
// greeting. An unterminated last line is dropped. Replies that do not start with "230-" carry no
// greeting and yield the empty string.
func Greeting(reply string) string {
	if !strings.HasPrefix(reply, "230-") {
		return ""
	}
	var b strings.Builder
	for {
		i := strings.Index(reply, "\r\n")
		if i < 0 {
			break
		}
		line := reply[:i]
		reply = reply[i+2:]
		if strings.HasPrefix(line, "230") {
			if len(line) >= 4 {
				line = "    " + line[4:]
			} else {
				line = strings.Repeat(" ", len(line))
			}
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

package ftp

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Outcome is the result of parsing a single listing line.
type Outcome int

const (
	// Parsed means the line is a listing entry in a known dialect.
	Parsed Outcome = iota
	// Skip means the line is not an entry, e.g. "total 42" or an empty line.
	Skip
	// Unrecognized means the line looks like an entry in an unknown dialect.
	Unrecognized
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Skip:
		return "skip"
	}
	return "unrecognized"
}

const maxTokens = 32

// Entry is a parsed line of a LIST reply.
type Entry struct {
	// Type is the file type character of the line: 'd', 'l', '-' and so on.
	Type     byte
	Mode     os.FileMode
	Size     uint64
	Name     string
	Date     string // As displayed, e.g. "Jul 21 11:23", "May 30  2007" or "02-01-06 04:31PM"
	Link     string // Symlink target
	Modified time.Time
}

func (e *Entry) IsDir() bool { return e.Type == 'd' }

func (e *Entry) IsSymlink() bool { return e.Type == 'l' }

// ParseFileMode parses a Unix permission string such as "drwxr-xr-x".
func ParseFileMode(s string) (os.FileMode, error) {
	if len(s) != 10 {
		return os.FileMode(0), fmt.Errorf("length must be 10")
	}
	var mode os.FileMode
	for i, c := range s {
		switch c {
		case 'd':
			if i == 0 {
				mode |= os.ModeDir
			}
		case 'l':
			if i == 0 {
				mode |= os.ModeSymlink
			}
		case 'r', 'w', 'x', 's', 't':
			if i > 0 {
				mode |= 1 << uint(9-i)
			}
		}
	}
	return mode, nil
}

func parseTime(now time.Time, yearOrTime, month string, day int) (time.Time, error) {
	m, err := time.Parse("Jan", month)
	if err != nil {
		return time.Time{}, err
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid day %d", day)
	}
	year := now.Year()
	hour := 0
	min := 0
	if strings.Contains(yearOrTime, ":") {
		t, err := time.Parse("15:04", yearOrTime)
		if err != nil {
			return time.Time{}, err
		}
		hour, min = t.Hour(), t.Minute()
		// Entries without a year are from the last twelve months
		if m.Month() > now.Month() {
			year--
		}
	} else {
		if len(yearOrTime) != 4 {
			return time.Time{}, fmt.Errorf("invalid year %q", yearOrTime)
		}
		_year, err := strconv.Atoi(yearOrTime)
		if err != nil {
			return time.Time{}, err
		}
		year = _year
	}
	return time.Date(year, m.Month(), day, hour, min, 0, 0, time.UTC), nil
}

type token struct {
	s   string
	off int
}

func (t token) end() int { return t.off + len(t.s) }

func tokenize(line string) []token {
	var tokens []token
	i := 0
	for i < len(line) && len(tokens) < maxTokens {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		if i > start {
			tokens = append(tokens, token{s: line[start:i], off: start})
		}
	}
	return tokens
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

// ParseEntry parses one line of a directory listing, without line terminator. Unix long listings
// and DOS listings are understood.
func ParseEntry(line string) (Entry, Outcome) {
	return parseEntry(time.Now(), line)
}

func parseEntry(now time.Time, line string) (Entry, Outcome) {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return Entry{}, Skip
	}
	// "+" starts an EPLF line, which is never skipped for being short
	if len(tokens) < 4 && tokens[0].s[0] != '+' {
		return Entry{}, Skip
	}
	if e, ok := parseUnix(now, line, tokens); ok {
		return e, Parsed
	}
	if e, ok := parseDOS(line, tokens); ok {
		return e, Parsed
	}
	return Entry{}, Unrecognized
}

// parseUnix handles long listings such as
//
//	drwxr-x--x  3 root      wheel          512 Jul 21 11:23 etc
//	drwxr-xr-x    5 1113     1112         4096 May 30  2007 pub
func parseUnix(now time.Time, line string, tokens []token) (Entry, bool) {
	for i := 3; i+2 < len(tokens); i++ {
		month, day, yearOrTime := tokens[i].s, tokens[i+1].s, tokens[i+2].s
		d, err := strconv.Atoi(day)
		if err != nil {
			continue
		}
		modified, err := parseTime(now, yearOrTime, month, d)
		if err != nil {
			continue
		}
		size, ok := parseSize(tokens[i-1].s)
		if !ok {
			continue
		}
		name := strings.TrimLeft(line[tokens[i+2].end():], " \t\r\n")
		if name == "" {
			continue
		}
		e := Entry{
			Type:     tokens[0].s[0],
			Size:     size,
			Date:     fmt.Sprintf("%s %2s %5s", month, day, yearOrTime),
			Modified: modified,
		}
		if mode, err := ParseFileMode(tokens[0].s); err == nil {
			e.Mode = mode
		}
		if e.IsSymlink() {
			if j := strings.Index(name, " -> "); j >= 0 {
				e.Link = name[j+4:]
				name = name[:j]
			}
		}
		e.Name = name
		return e, true
	}
	return Entry{}, false
}

// parseSize parses the size column. Some servers glue the group name and the size together, in
// which case the digits ending the column are taken when a letter precedes them.
func parseSize(s string) (uint64, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	if i > 0 {
		c := s[i-1]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s[i:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDOS handles listings such as
//
//	02-01-06  04:31PM       <DIR>          lanman
//	02-01-06  04:31PM                 1024 readme.txt
func parseDOS(line string, tokens []token) (Entry, bool) {
	if len(tokens) < 4 {
		return Entry{}, false
	}
	date, err := time.Parse("1-2-06", tokens[0].s)
	if err != nil {
		if date, err = time.Parse("1-2-2006", tokens[0].s); err != nil {
			return Entry{}, false
		}
	}
	hm, err := time.Parse("3:04PM", strings.ToUpper(tokens[1].s))
	if err != nil {
		return Entry{}, false
	}
	e := Entry{
		Date:     tokens[0].s + " " + tokens[1].s,
		Modified: time.Date(date.Year(), date.Month(), date.Day(), hm.Hour(), hm.Minute(), 0, 0, time.UTC),
	}
	if strings.EqualFold(tokens[2].s, "<DIR>") {
		e.Type = 'd'
		e.Mode = os.ModeDir
	} else {
		size, err := strconv.ParseUint(tokens[2].s, 10, 64)
		if err != nil {
			return Entry{}, false
		}
		e.Type = '-'
		e.Size = size
	}
	e.Name = strings.TrimLeft(line[tokens[2].end():], " \t\r\n")
	if e.Name == "" {
		e.Name = tokens[3].s
	}
	return e, true
}

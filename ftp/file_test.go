package ftp

import (
	"os"
	"strings"
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return dt(year, month, day, 0, 0, 0)
}

func dt(year int, month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

func TestParseMode(t *testing.T) {
	var tests = []struct {
		in string
	}{
		{"drwxrwxrwx"},
		{"lrwxrwxrwx"},
		{"-rwxrwxrwx"},
		{"-rwxr--r--"},
		{"-r-xr-xr-x"},
	}
	for _, tt := range tests {
		out, err := ParseFileMode(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if s := strings.ToLower(out.String()); s != tt.in {
			t.Errorf("ParseFileMode(%q) => %q, want %q", tt.in, s, tt.in)
		}
	}
	if _, err := ParseFileMode("drwx"); err == nil {
		t.Error("want error for short mode")
	}
}

func TestParseTime(t *testing.T) {
	var tests = []struct {
		day        int
		month      string
		yearOrTime string
		out        time.Time
		now        time.Time
	}{
		{15, "Jan", "2014", date(2014, 1, 15), time.Now()},
		{7, "Oct", "23:14", dt(2016, 10, 7, 23, 14, 0), date(2016, 11, 1)},
		{21, "Jul", "05:32", dt(2016, 7, 21, 5, 32, 0), date(2016, 11, 1)},
		{10, "Dec", "09:24", dt(2017, 12, 10, 9, 24, 0), date(2018, 1, 1)},
		{10, "Jan", "09:24", dt(2018, 1, 10, 9, 24, 0), date(2018, 1, 1)},
	}
	for _, tt := range tests {
		rv, err := parseTime(tt.now, tt.yearOrTime, tt.month, tt.day)
		if err != nil {
			t.Fatal(err)
		}
		if !rv.Equal(tt.out) {
			t.Errorf("parseTime(%d, %q, %q) => %s, want %s", tt.day, tt.month, tt.yearOrTime, rv, tt.out)
		}
	}
}

func TestParseTimeRejects(t *testing.T) {
	var tests = []struct {
		day        int
		month      string
		yearOrTime string
	}{
		{1, "Foo", "2014"},
		{32, "Jan", "2014"},
		{1, "Jan", "14"},
		{1, "Jan", "25:00"},
		{1, "wheel", "512"},
	}
	for _, tt := range tests {
		if _, err := parseTime(time.Now(), tt.yearOrTime, tt.month, tt.day); err == nil {
			t.Errorf("parseTime(%d, %q, %q) => nil error", tt.day, tt.month, tt.yearOrTime)
		}
	}
}

func TestParseEntry(t *testing.T) {
	now := date(2008, 9, 1)
	var tests = []struct {
		in  string
		out Entry
	}{
		{"drwxr-x--x  3 root wheel  512 Jul 21 11:23 etc",
			Entry{Type: 'd', Mode: os.ModeDir | 0751, Size: 512, Name: "etc", Date: "Jul 21 11:23",
				Modified: dt(2008, 7, 21, 11, 23, 0)}},
		{"drwxr-xr-x    5 1113     1112         4096 May 30  2007 pub",
			Entry{Type: 'd', Mode: os.ModeDir | 0755, Size: 4096, Name: "pub", Date: "May 30  2007",
				Modified: date(2007, 5, 30)}},
		{"drwxrwxrwx   3 foo   bar       4096 Jul 25   2014 dir with spaces",
			Entry{Type: 'd', Mode: os.ModeDir | 0777, Size: 4096, Name: "dir with spaces", Date: "Jul 25  2014",
				Modified: date(2014, 7, 25)}},
		{"-rw-r--r--   1 ftp      ftp        123456 Jan  3  2005 README",
			Entry{Type: '-', Mode: 0644, Size: 123456, Name: "README", Date: "Jan  3  2005",
				Modified: date(2005, 1, 3)}},
		{"lrwxrwxrwx   1 root     root            7 Aug  2 10:00 current -> 2.6.25",
			Entry{Type: 'l', Mode: os.ModeSymlink | 0777, Size: 7, Name: "current", Link: "2.6.25",
				Date: "Aug  2 10:00", Modified: dt(2008, 8, 2, 10, 0, 0)}},
		{"-rw-r--r--   1 owner    group12345678 Jun 25 00:37 glued",
			Entry{Type: '-', Mode: 0644, Size: 12345678, Name: "glued", Date: "Jun 25 00:37",
				Modified: dt(2008, 6, 25, 0, 37, 0)}},
		{"-rw-r--r--   1 owner    1024 Dec 24  2007 nogroup",
			Entry{Type: '-', Mode: 0644, Size: 1024, Name: "nogroup", Date: "Dec 24  2007",
				Modified: date(2007, 12, 24)}},
		{"02-01-06  04:31PM       <DIR>          lanman",
			Entry{Type: 'd', Mode: os.ModeDir, Name: "lanman", Date: "02-01-06 04:31PM",
				Modified: dt(2006, 2, 1, 16, 31, 0)}},
		{"11-23-07  09:02am                 1024 read me.txt",
			Entry{Type: '-', Size: 1024, Name: "read me.txt", Date: "11-23-07 09:02am",
				Modified: dt(2007, 11, 23, 9, 2, 0)}},
	}
	for _, tt := range tests {
		rv, outcome := parseEntry(now, tt.in)
		if outcome != Parsed {
			t.Errorf("parseEntry(%q) => %s, want %s", tt.in, outcome, Parsed)
			continue
		}
		if rv != tt.out {
			t.Errorf("parseEntry(%q) => %+v, want %+v", tt.in, rv, tt.out)
		}
	}
}

func TestParseEntryOutcome(t *testing.T) {
	var tests = []struct {
		in  string
		out Outcome
	}{
		{"", Skip},
		{"   ", Skip},
		{"total 1488", Skip},
		{"+i8388621.48594,m825718503,r,s280,\tdjb.html", Unrecognized},
		{"+i8388621.29609,m824255902,/,\t2005", Unrecognized},
		{"this is not a listing line at all", Unrecognized},
		{"drwxr-xr-x 2 foo bar 4096 Jul 21 11:23", Unrecognized},
		{"drwxr-xr-x 2 foo bar size Jul 21 11:23 name", Unrecognized},
		{"13-45-06  04:31PM       <DIR>          bad", Unrecognized},
		{"02-01-06  16:31       <DIR>          nopm", Unrecognized},
		{"02-01-06  04:31PM       huge          bad", Unrecognized},
		{"drwxr-xr-x 2 foo bar 4096 Jul 21 11:23 ok", Parsed},
		{"-rw-r--r-- 1 foo bar -10 Jul 21 11:23 negative", Unrecognized},
		{"-rw-r--r-- 1 foo grp2x Jul 21 11:23 nosize", Unrecognized},
	}
	for _, tt := range tests {
		if _, outcome := ParseEntry(tt.in); outcome != tt.out {
			t.Errorf("ParseEntry(%q) => %s, want %s", tt.in, outcome, tt.out)
		}
	}
}

func TestParseSize(t *testing.T) {
	var tests = []struct {
		in   string
		size uint64
		ok   bool
	}{
		{"512", 512, true},
		{"group12345", 12345, true},
		{"Group7", 7, true},
		{"-10", 0, false},
		{"grp2x", 0, false},
		{"1-2", 0, false},
		{"size", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		size, ok := parseSize(tt.in)
		if size != tt.size || ok != tt.ok {
			t.Errorf("parseSize(%q) => (%d, %t), want (%d, %t)", tt.in, size, ok, tt.size, tt.ok)
		}
	}
}

func TestIsSymlink(t *testing.T) {
	var tests = []struct {
		in  Entry
		out bool
	}{
		{Entry{Type: 'l'}, true},
		{Entry{Type: 'd'}, false},
		{Entry{}, false},
	}
	for i, tt := range tests {
		got := tt.in.IsSymlink()
		if got != tt.out {
			t.Errorf("Entry[%d].IsSymlink() => %t, want %t", i, got, tt.out)
		}
	}
}

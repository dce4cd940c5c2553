package ftp

import "testing"

func TestGreeting(t *testing.T) {
	var tests = []struct {
		in, out string
	}{
		{"230 Login successful.\r\n", ""},
		{"230-Welcome to the archive\r\n230-Be nice\r\n230 Login successful.\r\n",
			"    Welcome to the archive\r\n    Be nice\r\n    Login successful.\r\n\r\n"},
		{"230-Welcome\r\n  indented text\r\n230 OK\r\n", "    Welcome\r\n  indented text\r\n    OK\r\n\r\n"},
		{"230-\r\n230 OK\r\n", "    \r\n    OK\r\n\r\n"},
		{"230-Welcome\r\n230 OK\r\nunterminated", "    Welcome\r\n    OK\r\n\r\n"},
		{"230-Welcome\r\n100 Mbps link\r\n230 OK\r\n", "    Welcome\r\n100 Mbps link\r\n    OK\r\n\r\n"},
		{"331 Password required\r\n", ""},
	}
	for _, tt := range tests {
		if got := Greeting(tt.in); got != tt.out {
			t.Errorf("Greeting(%q) => %q, want %q", tt.in, got, tt.out)
		}
	}
}

package ftp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoStatus is returned when the control channel ends, or the reply buffer fills up, before
	// a status line is seen.
	ErrNoStatus = errors.New("ftp: no status line in reply")

	// ErrNoPort is returned when a PASV reply does not carry a usable address.
	ErrNoPort = errors.New("ftp: PASV reply provided no port")

	// ErrLineTooLong is returned by the transcoder when an unterminated listing line outgrows the
	// carry-over buffer.
	ErrLineTooLong = errors.New("ftp: overlong listing line")
)

// Error is an unexpected reply to a command sent on the control channel.
type Error struct {
	// Command is the command that was sent, without CRLF. Empty for the initial banner.
	Command string

	// Code is the status code of the reply.
	Code int

	// Response is the raw reply text.
	Response string
}

func (e *Error) Error() string {
	cmd := e.Command
	if cmd == "" {
		cmd = "connect"
	} else if strings.HasPrefix(cmd, "PASS ") {
		cmd = "PASS"
	}
	return fmt.Sprintf("ftp: %s: unexpected reply %d: %s", cmd, e.Code, strings.TrimSpace(e.Response))
}

// DialError is a failure to establish the control or data channel.
type DialError struct {
	Channel string // "control" or "data"
	Addr    string
	Err     error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("ftp: unable to setup %s channel to %s: %s", e.Channel, e.Addr, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// ReplyCode returns the status code carried by err, or 0 if err is not a protocol error.
func ReplyCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

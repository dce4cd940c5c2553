package ftp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// ReplyBufferSize is the capacity of the control channel reply buffer.
const ReplyBufferSize = 4096

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (r realClock) Now() time.Time { return time.Now() }

// Reply is a complete reply read from the control channel.
type Reply struct {
	Code int
	// Text holds every raw line read up to and including the status line.
	Text string
}

// Message returns the text following the status code on the status line.
func (r Reply) Message() string {
	text := lastLine(r.Text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

// Conn is the control channel of an FTP session.
type Conn struct {
	conn   net.Conn
	clock  clock
	buf    []byte
	n      int
	logger *slog.Logger

	// Timeout bounds every read and write on the control channel. Zero means no timeout.
	Timeout time.Duration
}

func newConn(conn net.Conn, timeout time.Duration, clock clock, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = nopLogger()
	}
	return &Conn{
		conn:    conn,
		clock:   clock,
		buf:     make([]byte, ReplyBufferSize),
		logger:  logger,
		Timeout: timeout,
	}
}

// NewConn wraps an established control connection.
func NewConn(conn net.Conn, timeout time.Duration, logger *slog.Logger) *Conn {
	return newConn(conn, timeout, realClock{}, logger)
}

func (c *Conn) setReadTimeout() {
	if c.Timeout == 0 {
		return
	}
	c.conn.SetReadDeadline(c.clock.Now().Add(c.Timeout))
}

func (c *Conn) setWriteTimeout() {
	if c.Timeout == 0 {
		return
	}
	c.conn.SetWriteDeadline(c.clock.Now().Add(c.Timeout))
}

// Close closes the control connection without saying goodbye.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Cmd sends a command terminated by CRLF and reads the reply.
func (c *Conn) Cmd(format string, args ...interface{}) (Reply, error) {
	cmd := fmt.Sprintf(format, args...)
	if strings.HasPrefix(cmd, "PASS ") {
		c.logger.Debug("sending command", "cmd", "PASS ****")
	} else {
		c.logger.Debug("sending command", "cmd", cmd)
	}
	c.setWriteTimeout()
	if _, err := io.WriteString(c.conn, cmd+"\r\n"); err != nil {
		return Reply{}, fmt.Errorf("ftp: failed to send %s: %w", verb(cmd), err)
	}
	r, err := c.ReadReply()
	if err != nil {
		return r, fmt.Errorf("ftp: reply to %s: %w", verb(cmd), err)
	}
	return r, nil
}

// Expect sends a command and fails with *Error unless the reply code is one of codes.
func (c *Conn) Expect(codes []int, format string, args ...interface{}) (Reply, error) {
	r, err := c.Cmd(format, args...)
	if err != nil {
		return r, err
	}
	for _, code := range codes {
		if r.Code == code {
			return r, nil
		}
	}
	return r, &Error{Command: fmt.Sprintf(format, args...), Code: r.Code, Response: r.Text}
}

// ReadReply reads from the control channel until a status line, one or more digits followed by a
// single space, completes a line. Preceding lines are kept in the reply text but otherwise
// ignored, so banner lines such as "100 Mbps connectivity" or "230-Welcome" never end a reply.
// Bytes received after the status line are kept for the next call.
func (c *Conn) ReadReply() (Reply, error) {
	var readErr error
	pos := 0
	for {
		for {
			i := bytes.IndexByte(c.buf[pos:c.n], '\n')
			if i < 0 {
				break
			}
			next := pos + i + 1
			if code, ok := statusCode(c.buf[pos:next]); ok {
				r := Reply{Code: code, Text: string(c.buf[:next])}
				c.n = copy(c.buf, c.buf[next:c.n])
				c.logger.Debug("received reply", "code", code)
				return r, nil
			}
			pos = next
		}
		if readErr != nil {
			text := string(c.buf[:c.n])
			c.n = 0
			if errors.Is(readErr, io.EOF) {
				return Reply{Text: text}, ErrNoStatus
			}
			return Reply{Text: text}, readErr
		}
		if c.n == len(c.buf) {
			text := string(c.buf[:c.n])
			c.n = 0
			return Reply{Text: text}, ErrNoStatus
		}
		c.setReadTimeout()
		m, err := c.conn.Read(c.buf[c.n:])
		c.n += m
		readErr = err
	}
}

// statusCode reports whether line starts with a run of digits followed by a space.
func statusCode(line []byte) (int, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != ' ' {
		return 0, false
	}
	code, err := strconv.Atoi(string(line[:i]))
	if err != nil {
		return 0, false
	}
	return code, true
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func verb(cmd string) string {
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		return cmd[:i]
	}
	return cmd
}

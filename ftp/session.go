package ftp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// TransferType is the representation type sent with TYPE.
type TransferType byte

const (
	Binary TransferType = 'I'
	ASCII  TransferType = 'A'
)

// Dialer opens TCP connections for the control and data channels.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Path is a request path split into the parts the session needs.
type Path struct {
	// Full is the decoded path without any ";type=" suffix.
	Full string
	// Dir is the directory part, empty for top-level names.
	Dir string
	// File is the last path segment, empty when Full ends with a slash.
	File string
	Type TransferType
}

// ParsePath decodes a percent-encoded request path and splits it into directory and file. A
// trailing ";type=a" or ";type=i" selects the transfer type, binary being the default.
func ParsePath(raw string) Path {
	p := Path{Full: Decode(raw), Type: Binary}
	if i := strings.LastIndex(p.Full, ";type="); i >= 0 && len(p.Full) == i+7 {
		switch p.Full[i+6] {
		case 'a', 'A':
			p.Type = ASCII
		}
		p.Full = p.Full[:i]
	}
	if p.Full == "" {
		p.Full = "/"
	}
	switch i := strings.LastIndexByte(p.Full, '/'); {
	case strings.HasSuffix(p.Full, "/"):
		p.Dir = p.Full
	case i < 0:
		p.File = p.Full
	default:
		p.Dir = p.Full[:i]
		p.File = p.Full[i+1:]
	}
	return p
}

// Request describes what to fetch from an FTP server.
type Request struct {
	// Addr is the host:port of the server.
	Addr string
	// Path is the percent-encoded URL path.
	Path string
	// Head stops the session once the path is resolved.
	Head bool
	// User and Password replace the anonymous login when User is set.
	User     string
	Password string
}

// Client opens FTP sessions on behalf of HTTP requests.
type Client struct {
	Dialer      Dialer
	IdleTimeout time.Duration
	// Product is sent as the anonymous password, "ftp@<product>".
	Product string
	Logger  *slog.Logger

	clock clock
}

func (c *Client) now() clock {
	if c.clock == nil {
		return realClock{}
	}
	return c.clock
}

// Session is an FTP session with an open data channel, or a finished one for HEAD requests.
type Session struct {
	conn    *Conn
	mu      sync.Mutex
	data    net.Conn
	clock   clock
	timeout time.Duration
	ctx     context.Context
	stop    func() bool
	logger  *slog.Logger
	closed  bool

	// Path is the resolved request path.
	Path Path
	// Dir is the directory being listed, or holding the file.
	Dir string
	// Base prefixes links in a listing. It is set when a path without trailing slash turned out
	// to be a directory.
	Base string
	// IsDir is true when the data channel carries a LIST reply.
	IsDir bool
	// Size is the file size reported by SIZE, or -1.
	Size int64
	// Greeting is the text of a multi-line login reply.
	Greeting string
}

// Open connects to the server, logs in, resolves the request path and starts the transfer. On
// success the data channel is ready to be read through the returned session, which must be
// closed. On failure both channels are closed and the error is returned; an *Error carries the
// server's reply.
func (c *Client) Open(ctx context.Context, req Request) (*Session, error) {
	logger := c.Logger
	if logger == nil {
		logger = nopLogger()
	}
	logger = logger.With("addr", req.Addr)
	conn, err := c.Dialer.DialContext(ctx, "tcp", req.Addr)
	if err != nil {
		logger.Warn("could not setup command channel", "error", err)
		return nil, &DialError{Channel: "control", Addr: req.Addr, Err: err}
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	s := &Session{
		conn:    newConn(conn, c.IdleTimeout, c.now(), logger),
		clock:   c.now(),
		timeout: c.IdleTimeout,
		ctx:     ctx,
		logger:  logger,
		Size:    -1,
	}
	s.stop = context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.data != nil {
			s.data.SetDeadline(time.Unix(1, 0))
		}
	})
	if err := s.open(ctx, c, req); err != nil {
		logger.Debug("ftp session failed", "path", req.Path, "error", err)
		s.abort()
		return nil, err
	}
	return s, nil
}

func (s *Session) open(ctx context.Context, c *Client, req Request) error {
	r, err := s.conn.ReadReply()
	if err != nil {
		return fmt.Errorf("ftp: reading banner: %w", err)
	}
	if r.Code != 220 {
		return &Error{Code: r.Code, Response: r.Text}
	}
	if err := s.login(c, req); err != nil {
		return err
	}
	if err := s.resolve(req.Path); err != nil {
		return err
	}
	if req.Head {
		s.conn.Cmd("QUIT")
		s.release()
		return nil
	}
	r, err = s.conn.Expect([]int{227}, "PASV")
	if err != nil {
		return err
	}
	host, port, err := ParsePASV(lastLine(r.Text))
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(r.Text))
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	data, err := c.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DialError{Channel: "data", Addr: addr, Err: err}
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	s.logger.Debug("opened data channel", "data", addr)
	return s.transfer()
}

func (s *Session) login(c *Client, req Request) error {
	user, pass := "anonymous", "ftp@"+c.Product
	if req.User != "" {
		user, pass = req.User, req.Password
	}
	r, err := s.conn.Cmd("USER %s", user)
	if err != nil {
		return err
	}
	switch r.Code {
	case 331:
		if r, err = s.conn.Expect([]int{230}, "PASS %s", pass); err != nil {
			return err
		}
	case 230:
	default:
		return &Error{Command: "USER " + user, Code: r.Code, Response: r.Text}
	}
	s.Greeting = Greeting(r.Text)
	return nil
}

// resolve changes into the requested directory. The full path is tried first, so that a
// directory requested without trailing slash is listed rather than retrieved.
func (s *Session) resolve(raw string) error {
	p := ParsePath(raw)
	r, err := s.conn.Cmd("CWD %s", p.Full)
	if err != nil {
		return err
	}
	if r.Code == 250 || r.Code == 230 {
		s.Base = p.File
		p.File = ""
		s.Dir = p.Full
	} else if p.Dir != "" {
		if _, err := s.conn.Expect([]int{250, 230}, "CWD %s", p.Dir); err != nil {
			return err
		}
		s.Dir = p.Dir
	}
	s.Path = p
	return nil
}

func (s *Session) transfer() error {
	if s.Path.File == "" {
		if _, err := s.conn.Expect([]int{125, 150}, "LIST"); err != nil {
			return err
		}
		s.IsDir = true
		return nil
	}
	r, err := s.conn.Cmd("TYPE %c", s.Path.Type)
	if err != nil {
		return err
	}
	if r.Code/100 != 2 {
		return &Error{Command: fmt.Sprintf("TYPE %c", s.Path.Type), Code: r.Code, Response: r.Text}
	}
	// Servers without SIZE leave the length unknown
	r, err = s.conn.Cmd("SIZE %s", s.Path.File)
	if err != nil {
		return err
	}
	if r.Code == 213 {
		if n, err := strconv.ParseInt(r.Message(), 10, 64); err == nil && n > 0 {
			s.Size = n
		}
	}
	if _, err := s.conn.Expect([]int{125, 150, 226, 250}, "RETR %s", s.Path.File); err != nil {
		return err
	}
	s.IsDir = false
	return nil
}

// Read reads from the data channel. Every read is bounded by the idle timeout.
func (s *Session) Read(p []byte) (int, error) {
	if s.data == nil {
		return 0, fmt.Errorf("ftp: no data channel")
	}
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	if s.timeout > 0 {
		s.data.SetReadDeadline(s.clock.Now().Add(s.timeout))
	}
	return s.data.Read(p)
}

// Close ends the transfer: the data channel is closed and the server is told goodbye.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	var result error
	if s.data != nil {
		if err := s.data.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.conn.Cmd("QUIT")
	if err := s.release(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// abort tears down a failed session.
func (s *Session) abort() {
	if s.closed {
		return
	}
	s.conn.Cmd("QUIT")
	if s.data != nil {
		if err := s.data.Close(); err != nil {
			s.logger.Debug("closing data channel", "error", err)
		}
	}
	if err := s.release(); err != nil {
		s.logger.Debug("closing control channel", "error", err)
	}
}

func (s *Session) release() error {
	s.closed = true
	s.stop()
	return s.conn.Close()
}

func lastLine(text string) string {
	text = strings.TrimRight(text, "\r\n")
	if i := strings.LastIndex(text, "\n"); i >= 0 {
		return text[i+1:]
	}
	return text
}

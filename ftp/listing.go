package ftp

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	// ReadBufferSize is the size of the segments read from the data channel.
	ReadBufferSize = 2 * 1024

	// MaxLineBuffer bounds the bytes of a listing line that may be held back waiting for CRLF.
	MaxLineBuffer = 2 * ReadBufferSize

	nameWidth = 32
	dots      = " . . . . . . . . . . . . . . . "
)

var crlf = []byte("\r\n")

// Renderer produces the HTML around a directory listing. Stylesheet and icons are served by the
// proxy itself under Internal, e.g. "ftproxy.intern".
type Renderer struct {
	Internal string
}

func (r *Renderer) icon(name string) string {
	return "http://" + r.Internal + "/" + name + ".png"
}

// WriteHeader writes the start of a listing page for directory path.
func (r *Renderer) WriteHeader(dst *bytes.Buffer, path, greeting string) {
	fmt.Fprintf(dst, "<html><head><link rel='stylesheet' type='text/css' href='http://%s/ftproxy.css'>"+
		"</head><body class='dirlist'><pre>", r.Internal)
	dst.WriteString(escape(greeting))
	fmt.Fprintf(dst, "</pre><h2>FTP Directory: %s</h2><hr><pre>\n", html.EscapeString(path))
	if path != "/" && path != "" {
		fmt.Fprintf(dst, "<a href='..'><img border='0' src='%s' alt='up'></a> <a href='..'>Parent Directory</a>\r\n",
			r.icon("u"))
	}
}

// WriteFooter closes a listing page.
func (r *Renderer) WriteFooter(dst *bytes.Buffer) {
	dst.WriteString("</pre><hr></body></html>\r\n")
}

// Transcoder turns a LIST reply, delivered in chunks of any size, into HTML rows. A Transcoder
// belongs to a single session.
type Transcoder struct {
	renderer *Renderer
	base     string
	buf      []byte
	logger   *slog.Logger

	// Unrecognized counts lines passed through because no dialect matched.
	Unrecognized int
}

// NewTranscoder creates a transcoder whose links are relative to base. Base is the raw name of
// the directory when the request path lacked a trailing slash, empty otherwise.
func NewTranscoder(r *Renderer, base string, logger *slog.Logger) *Transcoder {
	if logger == nil {
		logger = nopLogger()
	}
	if base != "" {
		base = Encode(base) + "/"
	}
	return &Transcoder{
		renderer: r,
		base:     base,
		buf:      make([]byte, 0, MaxLineBuffer),
		logger:   logger,
	}
}

// Transcode appends chunk to the pending bytes and writes every complete line to dst. An
// incomplete trailing line is kept for the next call. Holding back more than MaxLineBuffer bytes
// fails with ErrLineTooLong.
func (t *Transcoder) Transcode(dst *bytes.Buffer, chunk []byte) error {
	if len(t.buf)+len(chunk) > MaxLineBuffer {
		return fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(t.buf)+len(chunk))
	}
	t.buf = append(t.buf, chunk...)
	rest := t.buf
	for {
		i := bytes.Index(rest, crlf)
		if i < 0 {
			break
		}
		t.line(dst, rest[:i+2])
		rest = rest[i+2:]
	}
	n := copy(t.buf, rest)
	t.buf = t.buf[:n]
	return nil
}

// Flush writes a final line that the server did not terminate.
func (t *Transcoder) Flush(dst *bytes.Buffer) {
	if len(t.buf) == 0 {
		return
	}
	line := append(t.buf, crlf...)
	t.line(dst, line)
	t.buf = t.buf[:0]
}

func (t *Transcoder) line(dst *bytes.Buffer, raw []byte) {
	e, outcome := ParseEntry(string(raw[:len(raw)-2]))
	switch outcome {
	case Parsed:
		if e.Name == "." || e.Name == ".." {
			return
		}
		t.writeEntry(dst, &e)
	case Unrecognized:
		t.Unrecognized++
		t.logger.Debug("passing through listing line", "line", string(raw[:len(raw)-2]))
		fallthrough
	default:
		dst.WriteString(escape(string(raw[:len(raw)-2])))
		dst.Write(crlf)
	}
}

// escape escapes HTML markup in s. Carriage returns are kept as they are.
func escape(s string) string {
	if !strings.Contains(s, "\r") {
		return html.EscapeString(s)
	}
	parts := strings.Split(s, "\r")
	for i, part := range parts {
		parts[i] = html.EscapeString(part)
	}
	return strings.Join(parts, "\r")
}

func (t *Transcoder) writeEntry(dst *bytes.Buffer, e *Entry) {
	href := t.base + Encode(e.Name)
	if e.IsDir() {
		href += "/"
	}
	display, pad := displayName(e.Name)
	kind := typeChar(e.Type)
	link := ""
	if e.Link != "" {
		link = "-> " + html.EscapeString(e.Link)
	}
	fmt.Fprintf(dst, "<a href=\"%s\"><img border=\"0\" src=\"%s\" alt=\"[%c]\"></a> <a href=\"%s\">%s</a>%s %s %15d   %s\r\n",
		href, t.renderer.icon(string(kind)), kind, href, display, pad, html.EscapeString(e.Date), e.Size, link)
}

// displayName crops name to the name column and returns it with the dot leader that pads it.
func displayName(name string) (string, string) {
	n := nameWidth - len(name)
	if n <= 0 {
		cut := nameWidth - 2
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		return html.EscapeString(name[:cut]) + "&gt;", ""
	}
	return html.EscapeString(name), dots[nameWidth-n:]
}

func typeChar(c byte) byte {
	if c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return c
	}
	return '-'
}

// ListingWriter is an io.WriteCloser that transcodes a LIST reply into w.
type ListingWriter struct {
	w   io.Writer
	t   *Transcoder
	out bytes.Buffer
}

func NewListingWriter(w io.Writer, t *Transcoder) *ListingWriter {
	return &ListingWriter{w: w, t: t}
}

func (l *ListingWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > ReadBufferSize {
			chunk = chunk[:ReadBufferSize]
		}
		l.out.Reset()
		if err := l.t.Transcode(&l.out, chunk); err != nil {
			return written, err
		}
		if _, err := l.w.Write(l.out.Bytes()); err != nil {
			return written, err
		}
		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

// Close writes any unterminated last line.
func (l *ListingWriter) Close() error {
	l.out.Reset()
	l.t.Flush(&l.out)
	_, err := l.w.Write(l.out.Bytes())
	return err
}

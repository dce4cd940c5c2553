// Package proxy serves ftp:// and http:// URLs to HTTP proxy clients.
package proxy

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/httputil"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mpolden/ftproxy/acl"
	"github.com/mpolden/ftproxy/config"
	"github.com/mpolden/ftproxy/database"
	"github.com/mpolden/ftproxy/filter"
	"github.com/mpolden/ftproxy/ftp"
)

var (
	//go:embed templates/*.gohtml
	templateFS embed.FS

	//go:embed static
	staticFS embed.FS

	templates = template.Must(template.New("").Funcs(template.FuncMap{
		"unix": func(sec int64) string { return time.Unix(sec, 0).Format("2006-01-02 15:04:05 MST") },
	}).ParseFS(templateFS, "templates/*.gohtml"))
)

// Store records proxied requests.
type Store interface {
	Insert(database.Request) error
	Stats() (database.Stats, error)
	Recent(n int) ([]database.Request, error)
}

type Proxy struct {
	client   *ftp.Client
	renderer *ftp.Renderer
	acl      *acl.ACL
	filter   *filter.Filter
	store    Store
	reverse  *httputil.ReverseProxy
	static   fs.FS
	internal string
	product  string
	logger   *slog.Logger
}

// New creates a proxy from cfg. Requests are recorded in store unless it is nil.
func New(cfg *config.Config, store Store, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	upstream, err := cfg.UpstreamURL()
	if err != nil {
		return nil, err
	}
	a, err := cfg.ACLs()
	if err != nil {
		return nil, err
	}
	f, err := cfg.Filters()
	if err != nil {
		return nil, err
	}
	dialer, err := NewDialer(cfg.Connect(), cfg.ConnectRetries, upstream, logger.With("module", "dialer"))
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	p := &Proxy{
		client: &ftp.Client{
			Dialer:      dialer,
			IdleTimeout: cfg.Idle(),
			Product:     cfg.Product,
			Logger:      logger.With("module", "ftp"),
		},
		renderer: &ftp.Renderer{Internal: cfg.InternalName},
		acl:      a,
		filter:   f,
		store:    store,
		static:   static,
		internal: cfg.InternalName,
		product:  cfg.Product,
		logger:   logger.With("module", "proxy"),
	}
	p.reverse = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.Out.URL.User = nil
			r.SetXForwarded()
		},
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: cfg.Idle(),
			IdleConnTimeout:       cfg.Idle(),
			MaxIdleConns:          cfg.MaxClients,
		},
		ErrorLog: slog.NewLogLogger(p.logger.Handler(), slog.LevelWarn),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Warn("forwarding failed", "url", r.URL.Redacted(), "error", err)
			p.error(w, http.StatusBadGateway, "The server could not be reached.", err.Error())
		},
	}
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := &responseWriter{ResponseWriter: w}
	start := time.Now()
	ok, rule := p.acl.Check(r.RemoteAddr)
	if !ok {
		p.logger.Info("access denied", "client", r.RemoteAddr, "rule", rule)
		p.error(rw, http.StatusForbidden, "You are not allowed to use this proxy.", "")
		p.record(r, rw, start)
		return
	}
	if p.isInternal(r) {
		p.serveInternal(w, r)
		return
	}
	defer p.record(r, rw, start)
	if ok, pattern := p.filter.Check(r.URL.Hostname(), rule); !ok {
		p.logger.Info("host filtered", "client", r.RemoteAddr, "host", r.URL.Hostname(), "rule", rule, "pattern", pattern)
		p.error(rw, http.StatusForbidden, "Access to this host is filtered.", r.URL.Hostname())
		return
	}
	switch {
	case r.Method == http.MethodConnect:
		p.error(rw, http.StatusNotImplemented, "CONNECT is not supported.", "")
	case r.URL.Scheme == "ftp":
		p.serveFTP(rw, r)
	case r.URL.Scheme == "http":
		p.reverse.ServeHTTP(rw, r)
	default:
		p.error(rw, http.StatusBadRequest, "Unsupported URL scheme.", r.URL.Scheme)
	}
}

func (p *Proxy) isInternal(r *http.Request) bool {
	if r.Method == http.MethodConnect {
		return false
	}
	if r.URL.Host == "" {
		return true
	}
	return strings.EqualFold(r.URL.Hostname(), p.internal)
}

func (p *Proxy) serveFTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		p.error(w, http.StatusNotImplemented, "Only GET and HEAD are supported for FTP.", r.Method)
		return
	}
	port := r.URL.Port()
	if port == "" {
		port = "21"
	}
	req := ftp.Request{
		Addr: net.JoinHostPort(r.URL.Hostname(), port),
		Path: r.URL.EscapedPath(),
		Head: r.Method == http.MethodHead,
	}
	if u := r.URL.User; u != nil {
		req.User = u.Username()
		req.Password, _ = u.Password()
	}
	s, err := p.client.Open(r.Context(), req)
	if err != nil {
		p.ftpError(w, err)
		return
	}
	defer func() {
		if err := s.Close(); err != nil {
			p.logger.Debug("closing session", "error", err)
		}
	}()
	w.Header().Set("Connection", "close")
	switch {
	case req.Head:
		if s.Path.File == "" {
			w.Header().Set("Content-Type", "text/html")
		} else {
			w.Header().Set("Content-Type", contentType(s.Path))
		}
		w.WriteHeader(http.StatusOK)
	case s.IsDir:
		p.writeListing(w, s)
	default:
		p.writeFile(w, s)
	}
}

func contentType(p ftp.Path) string {
	if t := mime.TypeByExtension(path.Ext(p.File)); t != "" {
		return t
	}
	if p.Type == ftp.ASCII {
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

func (p *Proxy) writeFile(w http.ResponseWriter, s *ftp.Session) {
	w.Header().Set("Content-Type", contentType(s.Path))
	if s.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(s.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	n, err := io.CopyBuffer(w, s, make([]byte, ftp.ReadBufferSize))
	if err != nil {
		p.logger.Warn("transfer aborted", "path", s.Path.Full, "bytes", n, "error", err)
	}
}

// writeListing transcodes the whole listing before responding, so that a failure is still
// reported with an error status.
func (p *Proxy) writeListing(w http.ResponseWriter, s *ftp.Session) {
	var body bytes.Buffer
	p.renderer.WriteHeader(&body, s.Path.Full, s.Greeting)
	t := ftp.NewTranscoder(p.renderer, s.Base, p.logger)
	lw := ftp.NewListingWriter(&body, t)
	if _, err := io.CopyBuffer(lw, s, make([]byte, ftp.ReadBufferSize)); err != nil {
		p.ftpError(w, err)
		return
	}
	if err := lw.Close(); err != nil {
		p.ftpError(w, err)
		return
	}
	p.renderer.WriteFooter(&body)
	if t.Unrecognized > 0 {
		p.logger.Info("listing lines in unknown format", "path", s.Path.Full, "lines", t.Unrecognized)
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write(body.Bytes())
}

func (p *Proxy) ftpError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	p.logger.Warn("ftp request failed", "status", code, "error", err)
	p.error(w, code, errorMessage(code), Detail(err))
}

func errorMessage(code int) string {
	switch code {
	case http.StatusNotFound:
		return "The requested file or directory could not be found."
	case http.StatusForbidden:
		return "The FTP server refused the login."
	case http.StatusServiceUnavailable:
		return "The FTP server is not available."
	case http.StatusGatewayTimeout:
		return "The FTP server did not answer in time."
	}
	return "The FTP server sent an unexpected reply."
}

type errorPage struct {
	Status   int
	Title    string
	Message  string
	Detail   string
	Internal string
	Product  string
}

func (p *Proxy) error(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	page := errorPage{
		Status:   status,
		Title:    http.StatusText(status),
		Message:  message,
		Detail:   detail,
		Internal: p.internal,
		Product:  p.product,
	}
	if err := templates.ExecuteTemplate(w, "error.gohtml", page); err != nil {
		p.logger.Error("rendering error page", "error", err)
	}
}

func (p *Proxy) serveInternal(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case name == "" || name == "stats":
		p.serveStats(w)
	case name == "ftproxy.css":
		http.ServeFileFS(w, r, p.static, name)
	case strings.HasSuffix(name, ".png") && !strings.Contains(name, "/"):
		if _, err := fs.Stat(p.static, name); err != nil {
			name = "-.png"
		}
		http.ServeFileFS(w, r, p.static, name)
	default:
		p.error(w, http.StatusNotFound, "No such page.", r.URL.Path)
	}
}

type statsPage struct {
	Product  string
	Internal string
	Disabled bool
	Stats    database.Stats
	Recent   []database.Request
}

func (p *Proxy) serveStats(w http.ResponseWriter) {
	page := statsPage{Product: p.product, Internal: p.internal, Disabled: p.store == nil}
	if p.store != nil {
		var err error
		if page.Stats, err = p.store.Stats(); err == nil {
			page.Recent, err = p.store.Recent(20)
		}
		if err != nil {
			p.logger.Error("reading statistics", "error", err)
			p.error(w, http.StatusInternalServerError, "Statistics are unavailable.", err.Error())
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "stats.gohtml", page); err != nil {
		p.logger.Error("rendering statistics", "error", err)
	}
}

func (p *Proxy) record(r *http.Request, rw *responseWriter, start time.Time) {
	client, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		client = r.RemoteAddr
	}
	status := rw.status
	if status == 0 {
		status = http.StatusOK
	}
	p.logger.Info("request", "client", client, "method", r.Method, "url", r.URL.Redacted(),
		"status", status, "bytes", rw.bytes, "duration", time.Since(start))
	if p.store == nil {
		return
	}
	req := database.Request{
		Time:   start.Unix(),
		Client: client,
		Method: r.Method,
		Scheme: r.URL.Scheme,
		Host:   r.URL.Host,
		Path:   r.URL.Path,
		Status: status,
		Bytes:  rw.bytes,
	}
	if err := p.store.Insert(req); err != nil {
		p.logger.Warn("recording request", "error", err)
	}
}

// responseWriter remembers the status and counts the body bytes of a response.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *responseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *responseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

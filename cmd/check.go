package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	jftp "github.com/jlaffaye/ftp"
	"github.com/mpolden/ftproxy/config"
	"github.com/mpolden/ftproxy/ftp"
	"github.com/mpolden/ftproxy/proxy"
	"github.com/olekukonko/tablewriter"
)

var errNoURL = errors.New("expected a single ftp:// URL")

// Check lists a directory with an independent FTP client and compares the result with what the
// proxy's listing parser makes of the same directory.
type Check struct {
	opts
	Timeout time.Duration `short:"t" long:"timeout" description:"Timeout for the whole check" value-name:"DURATION" default:"30s"`
}

type target struct {
	addr     string
	path     ftp.Path
	rawPath  string
	user     string
	password string
}

func parseTarget(rawURL, product string) (target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return target{}, err
	}
	if u.Scheme != "ftp" || u.Hostname() == "" {
		return target{}, errNoURL
	}
	port := u.Port()
	if port == "" {
		port = "21"
	}
	t := target{
		addr:     net.JoinHostPort(u.Hostname(), port),
		path:     ftp.ParsePath(u.EscapedPath()),
		rawPath:  u.EscapedPath(),
		user:     "anonymous",
		password: "ftp@" + product,
	}
	if u.User != nil {
		t.user = u.User.Username()
		t.password, _ = u.User.Password()
	}
	return t, nil
}

func (c *Check) Execute(args []string) error {
	if len(args) != 1 {
		return errNoURL
	}
	cfg, err := c.readConfig()
	if err != nil {
		return err
	}
	t, err := parseTarget(args[0], cfg.Product)
	if err != nil {
		return err
	}
	upstream, err := cfg.UpstreamURL()
	if err != nil {
		return err
	}
	dialer, err := proxy.NewDialer(cfg.Connect(), cfg.ConnectRetries, upstream, c.Logger())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	entries, err := list(ctx, dialer, t)
	if err != nil {
		return err
	}
	writeEntries(entries, c.stdout())
	return c.compare(ctx, &cfg, dialer, t, len(entries))
}

func list(ctx context.Context, dialer *proxy.Dialer, t target) ([]*jftp.Entry, error) {
	conn, err := jftp.Dial(t.addr,
		jftp.DialWithContext(ctx),
		jftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, address)
		}))
	if err != nil {
		return nil, err
	}
	defer conn.Quit()
	if err := conn.Login(t.user, t.password); err != nil {
		return nil, err
	}
	return conn.List(t.path.Full)
}

func entryType(t jftp.EntryType) string {
	switch t {
	case jftp.EntryTypeFolder:
		return "dir"
	case jftp.EntryTypeLink:
		return "link"
	}
	return "file"
}

func writeEntries(entries []*jftp.Entry, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Type", "Size", "Modified"})
	for _, e := range entries {
		name := e.Name
		if e.Target != "" {
			name += " -> " + e.Target
		}
		row := []string{name, entryType(e.Type), strconv.FormatUint(e.Size, 10), e.Time.Format("2006-01-02 15:04")}
		table.Append(row)
	}
	table.Render()
}

// compare fetches the raw listing through the proxy's own session and reports how its lines were
// classified.
func (c *Check) compare(ctx context.Context, cfg *config.Config, dialer *proxy.Dialer, t target, want int) error {
	client := &ftp.Client{
		Dialer:      dialer,
		IdleTimeout: cfg.Idle(),
		Product:     cfg.Product,
		Logger:      c.Logger(),
	}
	s, err := client.Open(ctx, ftp.Request{Addr: t.addr, Path: t.rawPath, User: t.user, Password: t.password})
	if err != nil {
		return err
	}
	defer s.Close()
	if !s.IsDir {
		fmt.Fprintf(c.stdout(), "%s is a file\n", s.Path.Full)
		return nil
	}
	counts, err := classify(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout(), "%d entries listed, proxy parsed %d, skipped %d, passed through %d\n",
		want, counts[ftp.Parsed], counts[ftp.Skip], counts[ftp.Unrecognized])
	if counts[ftp.Unrecognized] > 0 {
		c.Logger().Warn("listing contains lines in an unknown format", "lines", counts[ftp.Unrecognized])
	}
	return nil
}

func classify(r io.Reader) (map[ftp.Outcome]int, error) {
	counts := make(map[ftp.Outcome]int)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		e, outcome := ftp.ParseEntry(strings.TrimRight(scanner.Text(), "\r"))
		if outcome == ftp.Parsed && (e.Name == "." || e.Name == "..") {
			continue
		}
		counts[outcome]++
	}
	return counts, scanner.Err()
}

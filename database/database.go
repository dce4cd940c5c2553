package database

import (
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
-- Log of proxied requests
CREATE TABLE IF NOT EXISTS request (
  id INTEGER PRIMARY KEY,
  time INTEGER,
  client TEXT,
  method TEXT,
  scheme TEXT,
  host TEXT,
  path TEXT,
  status INTEGER,
  bytes INTEGER
);

CREATE INDEX IF NOT EXISTS request_time ON request(time);
`

type Request struct {
	ID     int64  `db:"id"`
	Time   int64  `db:"time"`
	Client string `db:"client"`
	Method string `db:"method"`
	Scheme string `db:"scheme"`
	Host   string `db:"host"`
	Path   string `db:"path"`
	Status int    `db:"status"`
	Bytes  int64  `db:"bytes"`
}

// Stats are the counters aggregated over the request log.
type Stats struct {
	Requests int64 `db:"requests"`
	FTP      int64 `db:"ftp"`
	HTTP     int64 `db:"http"`
	Denied   int64 `db:"denied"`
	Bad      int64 `db:"bad"`
	Bytes    int64 `db:"bytes"`
}

type Client struct {
	db *sqlx.DB
	mu sync.Mutex
}

func New(filename string) (*Client, error) {
	db, err := sqlx.Connect("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a new database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Insert(r Request) error {
	// Ensure writes to SQLite db are serialized
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Time == 0 {
		r.Time = time.Now().Unix()
	}
	_, err := c.db.NamedExec(`INSERT INTO request (time, client, method, scheme, host, path, status, bytes)
VALUES (:time, :client, :method, :scheme, :host, :path, :status, :bytes)`, &r)
	return err
}

func (c *Client) Stats() (Stats, error) {
	var s Stats
	err := c.db.Get(&s, `SELECT COUNT(*) AS requests,
  COALESCE(SUM(scheme = 'ftp'), 0) AS ftp,
  COALESCE(SUM(scheme = 'http'), 0) AS http,
  COALESCE(SUM(status = 403), 0) AS denied,
  COALESCE(SUM(status >= 500), 0) AS bad,
  COALESCE(SUM(bytes), 0) AS bytes
FROM request`)
	return s, err
}

// Recent returns the n latest requests, newest first.
func (c *Client) Recent(n int) ([]Request, error) {
	var reqs []Request
	if err := c.db.Select(&reqs, "SELECT * FROM request ORDER BY time DESC, id DESC LIMIT $1", n); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (c *Client) CountBefore(t time.Time) (int64, error) {
	var n int64
	err := c.db.Get(&n, "SELECT COUNT(*) FROM request WHERE time < $1", t.Unix())
	return n, err
}

// DeleteBefore removes requests older than t and returns how many were removed.
func (c *Client) DeleteBefore(t time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.Exec("DELETE FROM request WHERE time < $1", t.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *Client) Vacuum() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec("VACUUM")
	return err
}

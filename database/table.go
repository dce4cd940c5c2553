package database

import (
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

func WriteStats(s Stats, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Requests", "FTP", "HTTP", "Denied", "Bad", "Bytes"})
	table.Append([]string{
		strconv.FormatInt(s.Requests, 10),
		strconv.FormatInt(s.FTP, 10),
		strconv.FormatInt(s.HTTP, 10),
		strconv.FormatInt(s.Denied, 10),
		strconv.FormatInt(s.Bad, 10),
		strconv.FormatInt(s.Bytes, 10),
	})
	table.Render()
}

func WriteRequests(reqs []Request, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Client", "Method", "URL", "Status", "Bytes"})
	for _, r := range reqs {
		date := time.Unix(r.Time, 0).Format("2006-01-02 15:04:05 MST")
		row := []string{date, r.Client, r.Method, r.URL(), strconv.Itoa(r.Status), strconv.FormatInt(r.Bytes, 10)}
		table.Append(row)
	}
	table.Render()
}

// URL reassembles the requested URL.
func (r Request) URL() string {
	if r.Scheme == "" {
		return r.Path
	}
	return r.Scheme + "://" + r.Host + r.Path
}

package proxy

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/mpolden/ftproxy/ftp"
)

// StatusCode maps a failed FTP session to the HTTP status sent to the client.
func StatusCode(err error) int {
	var dialErr *ftp.DialError
	switch {
	case errors.As(err, &dialErr):
		return http.StatusNotFound
	case errors.Is(err, os.ErrDeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ftp.ErrLineTooLong):
		return http.StatusBadGateway
	}
	switch ftp.ReplyCode(err) {
	case 530, 532:
		return http.StatusForbidden
	case 450, 550, 551, 553:
		return http.StatusNotFound
	case 421, 425, 426:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// Detail returns the text to show for a failed session: the server's own reply when there is
// one.
func Detail(err error) string {
	var e *ftp.Error
	if errors.As(err, &e) && e.Response != "" {
		return strings.TrimSpace(e.Response)
	}
	return err.Error()
}

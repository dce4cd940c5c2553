package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"testing"
)

// ftpd is a minimal anonymous FTP server serving files and listings from memory.
type ftpd struct {
	ln    net.Listener
	files map[string]string
	dirs  map[string]string
	pass  string
}

// newFTPD starts a server. A non-empty pass is required as password.
func newFTPD(t *testing.T, pass string) *ftpd {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	d := &ftpd{
		ln:   ln,
		pass: pass,
		files: map[string]string{
			"/pub/hello.txt": "hello world\n",
		},
		dirs: map[string]string{
			"/": "drwxr-xr-x   2 ftp ftp  4096 May 30  2007 pub\r\n",
			"/pub": "total 1\r\n" +
				"-rw-r--r--   1 ftp ftp    12 Jul 21 11:23 hello.txt\r\n" +
				"drwxr-xr-x   2 ftp ftp  4096 May 30  2007 <sub>\r\n",
		},
	}
	t.Cleanup(func() { ln.Close() })
	go d.serve()
	return d
}

func (d *ftpd) Addr() string { return d.ln.Addr().String() }

func (d *ftpd) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.handle(conn)
	}
}

func (d *ftpd) handle(conn net.Conn) {
	defer conn.Close()
	io.WriteString(conn, "220 ftpd ready\r\n")
	r := bufio.NewReader(conn)
	cwd := "/"
	var data net.Listener
	defer func() {
		if data != nil {
			data.Close()
		}
	}()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimRight(line, "\r\n"), " ")
		switch cmd {
		case "USER":
			io.WriteString(conn, "331 Please specify the password.\r\n")
		case "PASS":
			if d.pass != "" && arg != d.pass {
				io.WriteString(conn, "530 Login incorrect.\r\n")
				continue
			}
			io.WriteString(conn, "230-Welcome to ftpd\r\n230 Login successful.\r\n")
		case "CWD":
			dir := strings.TrimSuffix(arg, "/")
			if dir == "" {
				dir = "/"
			}
			if _, ok := d.dirs[dir]; !ok {
				io.WriteString(conn, "550 Failed to change directory.\r\n")
				continue
			}
			cwd = dir
			io.WriteString(conn, "250 Directory successfully changed.\r\n")
		case "TYPE":
			io.WriteString(conn, "200 Switching mode.\r\n")
		case "SIZE":
			if f, ok := d.files[path.Join(cwd, arg)]; ok {
				fmt.Fprintf(conn, "213 %d\r\n", len(f))
				continue
			}
			io.WriteString(conn, "550 Could not get file size.\r\n")
		case "PASV":
			if data != nil {
				data.Close()
			}
			if data, err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
				io.WriteString(conn, "425 Cannot open data connection.\r\n")
				continue
			}
			port := data.Addr().(*net.TCPAddr).Port
			fmt.Fprintf(conn, "227 Entering Passive Mode (127,0,0,1,%d,%d).\r\n", port/256, port%256)
		case "LIST":
			send(conn, data, d.dirs[cwd])
		case "RETR":
			f, ok := d.files[path.Join(cwd, arg)]
			if !ok {
				io.WriteString(conn, "550 Failed to open file.\r\n")
				continue
			}
			send(conn, data, f)
		case "QUIT":
			io.WriteString(conn, "221 Goodbye.\r\n")
			return
		default:
			io.WriteString(conn, "502 Command not implemented.\r\n")
		}
	}
}

func send(conn net.Conn, ln net.Listener, payload string) {
	if ln == nil {
		io.WriteString(conn, "425 Use PASV first.\r\n")
		return
	}
	io.WriteString(conn, "150 Here comes the data.\r\n")
	data, err := ln.Accept()
	if err != nil {
		return
	}
	io.WriteString(data, payload)
	data.Close()
	io.WriteString(conn, "226 Transfer complete.\r\n")
}

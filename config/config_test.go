package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadConfig(t *testing.T) {
	jsonConfig := `
{
  "Listen": "127.0.0.1:3128",
  "Database": "/tmp/ftproxy.db",
  "IdleTimeout": "2m",
  "StatsRetention": "24h",
  "Upstream": "socks5://127.0.0.1:1080",
  "DefaultPolicy": "deny",
  "Filter": [
    {
      "ACL": "lan",
      "Pattern": "\\.example\\.com$"
    }
  ],
  "ACL": [
    {
      "Name": "printer",
      "Location": "10.0.0.9",
      "Action": "deny"
    },
    {
      "Name": "lan",
      "Location": "10.0.0.0/8"
    }
  ]
}
`
	cfg, err := readConfig(strings.NewReader(jsonConfig))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := cfg.Listen, "127.0.0.1:3128"; got != want {
		t.Errorf("got Listen=%q, want Listen=%q", got, want)
	}
	if got, want := cfg.Product, "ftproxy"; got != want {
		t.Errorf("got Product=%q, want Product=%q", got, want)
	}
	var tests = []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"idleTimeout", cfg.Idle(), 2 * time.Minute},
		{"connectTimeout", cfg.Connect(), 10 * time.Second},
		{"statsRetention", cfg.Retention(), 24 * time.Hour},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s=%s, want %s=%s", tt.name, tt.got, tt.name, tt.want)
		}
	}
	if got := len(cfg.ACL); got != 2 {
		t.Fatalf("got %d rules, want 2", got)
	}
	a, err := cfg.ACLs()
	if err != nil {
		t.Fatal(err)
	}
	if a.Allow("10.0.0.9:1234") {
		t.Error("want 10.0.0.9 denied")
	}
	if !a.Allow("10.0.0.1:1234") {
		t.Error("want 10.0.0.1 allowed")
	}
	if a.Allow("192.0.2.1:1234") {
		t.Error("want 192.0.2.1 denied by default policy")
	}
	f, err := cfg.Filters()
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.Check("www.example.com", "lan"); ok {
		t.Error("want www.example.com filtered for lan")
	}
	if ok, _ := f.Check("ftp.gnu.org", "lan"); !ok {
		t.Error("want ftp.gnu.org allowed for lan")
	}
	u, err := cfg.UpstreamURL()
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "127.0.0.1:1080" {
		t.Errorf("got upstream host %q", u.Host)
	}
}

func TestReadConfigDefaults(t *testing.T) {
	cfg, err := readConfig(strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != Default.Listen || cfg.MaxClients != Default.MaxClients {
		t.Errorf("got %+v, want defaults", cfg)
	}
	if cfg.Idle() != time.Minute {
		t.Errorf("got idleTimeout=%s, want %s", cfg.Idle(), time.Minute)
	}
	if u, err := cfg.UpstreamURL(); err != nil || u != nil {
		t.Errorf("got upstream (%v, %v), want none", u, err)
	}
}

func TestReadConfigInvalid(t *testing.T) {
	var tests = []string{
		`{"IdleTimeout": "forever"}`,
		`{"ConnectTimeout": "10"}`,
		`{"ConnectRetries": -1}`,
		`{"LogLevel": "TRACE"}`,
		`{"DefaultPolicy": "maybe"}`,
		`{"ACL": [{"Name": "bad", "Location": "300.0.0.1"}]}`,
		`{"Upstream": "http://127.0.0.1:3128"}`,
		`{"FilterPolicy": "block"}`,
		`{"Filter": [{"Pattern": "("}]}`,
		`{"Listen": 8080}`,
	}
	for _, in := range tests {
		if _, err := readConfig(strings.NewReader(in)); err == nil {
			t.Errorf("readConfig(%q) => nil error", in)
		}
	}
}

func TestReadConfigFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "ftproxyrc")
	if err := os.WriteFile(name, []byte(`{"Product": "test"}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := ReadConfig(name)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Product != "test" {
		t.Errorf("got Product=%q, want %q", cfg.Product, "test")
	}
	if _, err := ReadConfig(name + ".missing"); err == nil {
		t.Error("want error for missing file")
	}
}

func TestJSON(t *testing.T) {
	cfg, err := readConfig(strings.NewReader(`{"Listen": ":3128"}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := cfg.JSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"Listen": ":3128"`) {
		t.Errorf("JSON() = %s", b)
	}
	if strings.Contains(string(b), "idleTimeout") {
		t.Errorf("JSON() = %s, contains unexported field", b)
	}
}

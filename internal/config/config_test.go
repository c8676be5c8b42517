package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("jwt:\n  secret: s3cret\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "memory" || cfg.Storage.Driver != "local" {
		t.Errorf("drivers = %q, %q", cfg.Store.Driver, cfg.Storage.Driver)
	}
	if cfg.Storage.URLExpiry != 7*24*time.Hour {
		t.Errorf("Storage.URLExpiry = %v", cfg.Storage.URLExpiry)
	}
	if cfg.Local.BaseURL != "http://localhost:8080/media" {
		t.Errorf("Local.BaseURL = %q", cfg.Local.BaseURL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad(t *testing.T) {
	data := `
server:
  host: 0.0.0.0
  port: 9000
store:
  driver: postgres
database:
  host: db
  user: chat
  password: pw
  dbname: messenger
storage:
  driver: s3
  url_expiry: 1h
aws:
  region: eu-central-1
  s3_bucket: media
  public_url: https://cdn.example.com
jwt:
  secret: s3cret
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Store.Driver != "postgres" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Storage.URLExpiry != time.Hour {
		t.Errorf("Storage.URLExpiry = %v", cfg.Storage.URLExpiry)
	}
	want := "host=db port=5432 user=chat password=pw dbname=messenger sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing secret", "store:\n  driver: memory\n", "jwt.secret"},
		{"unknown store", "store:\n  driver: etcd\njwt:\n  secret: x\n", "store driver"},
		{"unknown storage", "storage:\n  driver: ftp\njwt:\n  secret: x\n", "storage driver"},
		{"s3 without bucket", "storage:\n  driver: s3\njwt:\n  secret: x\n", "s3_bucket"},
		{"s3 without public url", "storage:\n  driver: s3\naws:\n  s3_bucket: media\njwt:\n  secret: x\n", "public_url"},
		{"partial apns", "apns:\n  key_path: key.p8\njwt:\n  secret: x\n", "apns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

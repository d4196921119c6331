package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+): switch to dir and restore on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, map[string]string{
		"FRESHDESK_BASE_URL": "https://acme.freshdesk.com/api/v2",
		"FRESHDESK_API_KEY":  "key",
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.PerPage != 10 || cfg.TicketsPerRequest != 100 {
		t.Errorf("per page = %d, per request = %d", cfg.PerPage, cfg.TicketsPerRequest)
	}
	if cfg.Freshdesk.Timeout != 15*time.Second || cfg.Freshdesk.MaxRetries != 3 {
		t.Errorf("freshdesk = %+v", cfg.Freshdesk)
	}
	if !reflect.DeepEqual(cfg.Routes, DefaultRoutes) {
		t.Errorf("routes = %v", cfg.Routes)
	}
	if cfg.ActivityEnabled {
		t.Error("activity log must be off by default")
	}
}

func TestLoad_CapsTicketsPerRequest(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, map[string]string{"FRESHDESK_TICKETS_PER_REQUEST": "250"})
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TicketsPerRequest != 100 {
		t.Errorf("TicketsPerRequest = %d, want 100", cfg.TicketsPerRequest)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, map[string]string{"FRESHDESK_TIMEOUT": "soon"})
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, map[string]string{"FRESHDESK_BASE_URL": "", "FRESHDESK_API_KEY": ""})
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without Freshdesk credentials")
	}
	cfg.Freshdesk.BaseURL = "http://acme.freshdesk.com"
	cfg.Freshdesk.APIKey = "key"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for plain http")
	}
}

func TestLoadRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte("list: /support\nview: /support/view\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	routes, err := LoadRoutes(path)
	if err != nil {
		t.Fatalf("LoadRoutes: %v", err)
	}
	want := map[string]string{"list": "/support", "view": "/support/view"}
	if !reflect.DeepEqual(routes, want) {
		t.Errorf("routes = %v", routes)
	}
}

func TestParseList(t *testing.T) {
	got := ParseList(" a:9092, ,b:9092,")
	if !reflect.DeepEqual(got, []string{"a:9092", "b:9092"}) {
		t.Errorf("ParseList = %v", got)
	}
}

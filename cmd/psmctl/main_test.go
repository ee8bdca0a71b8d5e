package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/bcnelson/psm-connector/internal/config"
	"github.com/bcnelson/psm-connector/internal/psm/psmtest"
	"github.com/bcnelson/psm-connector/internal/storage/file"
	"github.com/bcnelson/psm-connector/internal/storage/memory"
	"github.com/bcnelson/psm-connector/internal/storage/sql"
)

// setApplianceEnv points the PSM_* variables at srv and a temp session dir.
func setApplianceEnv(t *testing.T, srv *psmtest.Server) string {
	t.Helper()
	cfg := srv.Config()
	dir := t.TempDir()
	t.Setenv("PSM_CONFIG_FILE", "")
	t.Setenv("PSM_SERVER_ADDRESS", cfg.ServerAddress)
	t.Setenv("PSM_PORT", strconv.Itoa(cfg.Port))
	t.Setenv("PSM_USERNAME", cfg.Username)
	t.Setenv("PSM_PASSWORD", cfg.Password)
	t.Setenv("PSM_TENANT", cfg.Tenant)
	t.Setenv("PSM_PROTOCOL", "HTTP")
	t.Setenv("PSM_SESSION_STORE", "file")
	t.Setenv("PSM_TMP_FILE_ROOT", dir)
	t.Setenv("PSM_LOG_LEVEL", "error")
	return dir
}

func TestParseArgs(t *testing.T) {
	inv, err := parseArgs([]string{
		"-params", `{"ioc_ip":["1.2.3.4"],"interval":"10s"}`,
		"-p", "host_source_ip=10.0.0.5",
		"-p", "interval=30s",
		"isolate_host",
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if inv.operation != "isolate_host" {
		t.Errorf("Expected isolate_host, got %s", inv.operation)
	}
	if inv.params.String("host_source_ip") != "10.0.0.5" {
		t.Errorf("Expected host from -p, got %v", inv.params)
	}
	if inv.params.String("interval") != "30s" {
		t.Errorf("Expected -p to override -params, got %v", inv.params["interval"])
	}
	if got := inv.params.List("ioc_ip"); len(got) != 1 || got[0] != "1.2.3.4" {
		t.Errorf("Unexpected ioc_ip %v", got)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"a", "b"},
		{"-p", "novalue", "health_check"},
		{"-params", "{", "health_check"},
	}
	for _, args := range tests {
		if _, err := parseArgs(args, &bytes.Buffer{}); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestRunReusesSessionAcrossInvocations(t *testing.T) {
	srv := psmtest.NewServer()
	defer srv.Close()
	dir := setApplianceEnv(t, srv)

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), []string{"health_check"}, &stdout, &stderr); code != 0 {
			t.Fatalf("Expected exit 0, got %d: %s", code, stderr.String())
		}
		var msg string
		if err := json.Unmarshal(stdout.Bytes(), &msg); err != nil || msg != "Connector is Available" {
			t.Errorf("Unexpected output %q", stdout.String())
		}
	}

	if srv.Logins() != 1 {
		t.Errorf("Expected the persisted session to be reused, got %d logins", srv.Logins())
	}
	if _, err := os.Stat(filepath.Join(dir, file.SessionFilePrefix+"_generic")); err != nil {
		t.Errorf("Expected the session file to exist: %v", err)
	}
}

func TestRunIsolateHost(t *testing.T) {
	srv := psmtest.NewServer()
	defer srv.Close()
	setApplianceEnv(t, srv)
	if err := srv.SetPolicyRules("default-policy", nil); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-p", "host_source_ip=10.0.0.5", "isolate_host"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr.String())
	}
	rules, _ := srv.PolicyRules("default-policy")
	if len(rules) != 2 {
		t.Errorf("Expected 2 rules, got %d", len(rules))
	}
}

func TestRunFailures(t *testing.T) {
	srv := psmtest.NewServer()
	defer srv.Close()
	setApplianceEnv(t, srv)

	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"unknown operation", []string{"reboot"}, nil, "unsupported operation"},
		{"missing tenant", []string{"get_workloads"}, map[string]string{"PSM_TENANT": ""}, "tenant"},
		{"bad store", []string{"get_workloads"}, map[string]string{"PSM_SESSION_STORE": "etcd"}, "unknown session store"},
		{"no policy", []string{"-p", "host_source_ip=10.0.0.5", "isolate_host"}, nil, "no network security policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != 1 {
				t.Errorf("Expected exit 1, got %d", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("Expected %q in %q", tt.want, stderr.String())
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name  string
		cfg   config.SessionConfig
		check func(any) bool
	}{
		{"file", config.SessionConfig{Store: "file", TmpFileRoot: dir}, func(s any) bool { _, ok := s.(*file.Store); return ok }},
		{"memory", config.SessionConfig{Store: "memory"}, func(s any) bool { _, ok := s.(*memory.Store); return ok }},
		{"sqlite3", config.SessionConfig{Store: "sqlite3", DSN: filepath.Join(dir, "db", "sessions.db")}, func(s any) bool { _, ok := s.(*sql.Store); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(ctx, tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()
			if !tt.check(store) {
				t.Errorf("Unexpected store type %T", store)
			}
		})
	}

	if _, err := openStore(ctx, config.SessionConfig{Store: "postgres"}); err == nil {
		t.Error("Expected postgres without a DSN to fail")
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "info", Format: "json"}, &buf)
	logger.Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("Expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	logger = newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
duo:
  integration_key: DIABCDEFGHIJKLMNOPQR
  secret_key: secret
  api_host: api-xxxxxxxx.duosecurity.com
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Duo.CallsPerMinute != 50 || cfg.Duo.MaxRetries != 3 {
		t.Errorf("duo defaults: %+v", cfg.Duo)
	}
	if cfg.Duo.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Duo.Timeout())
	}
	if cfg.Cleanup.BatchSize != 10 || cfg.Cleanup.BatchPause() != 2*time.Second {
		t.Errorf("cleanup defaults: %+v", cfg.Cleanup)
	}
	if cfg.Cleanup.LogDir != "logs" || cfg.Cleanup.BackupDir != "backups" {
		t.Errorf("artifact dirs: %+v", cfg.Cleanup)
	}
	if cfg.Database.DSN == "" {
		t.Error("no default DSN")
	}
}

func TestLoadEnvOverridesCredentials(t *testing.T) {
	t.Setenv("DUO_IKEY", "DIENVENVENVENVENVENV")
	t.Setenv("DUO_SKEY", "env-secret")
	t.Setenv("DUO_HOST", "api-env.duosecurity.com")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Duo.IntegrationKey != "DIENVENVENVENVENVENV" {
		t.Errorf("ikey = %q", cfg.Duo.IntegrationKey)
	}
	if cfg.Duo.SecretKey != "env-secret" || cfg.Duo.APIHost != "api-env.duosecurity.com" {
		t.Errorf("env overrides not applied: %+v", cfg.Duo)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	if err == nil || !strings.Contains(err.Error(), "duo credentials") {
		t.Fatalf("want credentials error, got %v", err)
	}
}

func TestLoadLDAPValidation(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
ldap:
  enabled: true
  url: ldaps://dc01.example.org:636
`))
	if err == nil || !strings.Contains(err.Error(), "bind_dn") {
		t.Fatalf("want bind_dn error, got %v", err)
	}
}

func TestLoadLDAPDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
ldap:
  enabled: true
  url: ldaps://dc01.example.org:636
  bind_dn: CN=svc,OU=Service,DC=example,DC=org
  bind_password: hunter2
  base_dn: DC=example,DC=org
  group_mapping:
    admin: CN=DuoAdmins,OU=Groups,DC=example,DC=org
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LDAP.UserFilter != "(sAMAccountName=%s)" || cfg.LDAP.UsernameAttr != "sAMAccountName" {
		t.Errorf("ldap defaults: %+v", cfg.LDAP)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file did not error")
	}
}

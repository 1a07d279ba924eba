package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestServeCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("serve --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "websocket") {
		t.Errorf("expected help to describe the server surfaces, got: %s", out)
	}
	if !strings.Contains(out, "--config") || !strings.Contains(out, "dealroom.yaml") {
		t.Errorf("expected --config flag with default, got: %s", out)
	}
	if !strings.Contains(out, "--port") {
		t.Errorf("expected --port flag, got: %s", out)
	}
}

func TestServeCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve", "--config", "/does/not/exist.yaml"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConnectFromConfig_SQLite(t *testing.T) {
	configPath := writeSQLiteConfig(t)

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		t.Fatalf("connectFromConfig: %v", err)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.DB.Driver)
	}
	if gormDB == nil {
		t.Fatal("expected a database handle")
	}
}

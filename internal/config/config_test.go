package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-chat/server"
)

func TestLoadDefaults(t *testing.T) {
	cfg, logCfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := server.DefaultConfig()
	if cfg.ListenAddr != want.ListenAddr || cfg.Mode != want.Mode || cfg.QueueSize != want.QueueSize {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ShutdownTimeout != want.ShutdownTimeout {
		t.Fatalf("shutdown_timeout = %v", cfg.ShutdownTimeout)
	}
	if logCfg.Level != "info" || logCfg.Format != "json" {
		t.Fatalf("log = %+v", logCfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	yaml := strings.Join([]string{
		"listen_addr: 127.0.0.1:7000",
		"mode: line",
		"workers: 3",
		"messages_per_second: 5",
		"log:",
		"  level: debug",
		"  format: console",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHAT_WORKERS", "6")
	t.Setenv("CHAT_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("CHAT_LOG_LEVEL", "warn")

	cfg, logCfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7000" || cfg.Mode != "line" {
		t.Fatalf("file layer lost: %+v", cfg)
	}
	if cfg.Workers != 6 {
		t.Fatalf("workers = %d, env should win", cfg.Workers)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("shutdown_timeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.MessagesPerSecond != 5 {
		t.Fatalf("messages_per_second = %v", cfg.MessagesPerSecond)
	}
	if logCfg.Level != "warn" || logCfg.Format != "console" {
		t.Fatalf("log = %+v", logCfg)
	}
}

func TestLoadUsesConfigEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("default_name: Anon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultName != "Anon" {
		t.Fatalf("default_name = %q", cfg.DefaultName)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "nope.yaml"))
	if _, _, err := Load(); err == nil {
		t.Fatal("expected error for missing CHAT_CONFIG file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"CHAT_MODE":              "pigeon",
		"CHAT_LISTEN_ADDR":       "not-an-addr",
		"CHAT_QUEUE_SIZE":        "0",
		"CHAT_LOG_FORMAT":        "xml",
		"CHAT_MAX_FRAME_PAYLOAD": "4611686018427387904",
	}
	for env, val := range tests {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			if _, _, err := LoadFile(""); err == nil {
				t.Fatalf("%s=%s accepted", env, val)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CHAT_LISTEN_ADDR":         "listen_addr",
		"CHAT_LOG_LEVEL":           "log.level",
		"CHAT_MESSAGES_PER_SECOND": "messages_per_second",
		"CHAT_CONFIG":              "",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

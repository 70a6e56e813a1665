package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// SetupLogging sends log output to stderr and to filename in cfg.LogDir.
// Stdout stays free for command output. Caller should close the returned
// io.Closer on shutdown.
func SetupLogging(cfg Config, filename string) (io.Closer, error) {
	dir := cfg.LogDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "kakariko")
	}
	if filename == "" {
		filename = "client.log"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

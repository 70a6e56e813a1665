package devapi

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupLogging tees the standard logger and Gin's writers into filename
// under cfg.LogDir. Close the returned file on shutdown.
func SetupLogging(cfg Config, filename string) (io.Closer, error) {
	dir := cfg.LogDir
	if dir == "" {
		dir = "/var/log/kakariko"
	}
	if filename == "" {
		filename = "devapi.log"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	out := io.MultiWriter(os.Stdout, f)
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	gin.DefaultWriter = out
	gin.DefaultErrorWriter = out
	return f, nil
}

// RequestLogger writes one line per request with the operator id when the
// request was authenticated. Query strings are left out so tokens never
// reach the log.
func RequestLogger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		operator := "-"
		if u, ok := p.Keys[ctxUser].(User); ok {
			operator = fmt.Sprintf("%d", u.ID)
		}
		line := fmt.Sprintf("[api] %s %s %s %d %s op=%s",
			p.TimeStamp.Format(time.RFC3339), p.Method, p.Request.URL.Path,
			p.StatusCode, p.Latency.Round(time.Microsecond), operator)
		if p.ErrorMessage != "" {
			line += " err=" + p.ErrorMessage
		}
		return line + "\n"
	})
}

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TheZeroSlave/zapsentry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestJSONCore(t *testing.T) {
	var buf bytes.Buffer
	l := zap.New(jsonCore(&buf, zapcore.InfoLevel))
	l.Debug("hidden")
	l.Info("Listing created", zap.Uint64("listing_id", 1))

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if out["message"] != "Listing created" || out["listing_id"] != float64(1) {
		t.Errorf("unexpected entry: %v", out)
	}
	if _, ok := out["time"]; !ok {
		t.Error("expected time key")
	}
}

func TestNewLogger_File(t *testing.T) {
	defer zap.ReplaceGlobals(zap.L())

	path := filepath.Join(t.TempDir(), "devnet.log")
	if err := NewLogger(path, false, ""); err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	zap.L().Info("Devnet genesis complete")
	zap.L().Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(b), `"service":"`+ServiceName+`"`) {
		t.Errorf("expected service field in %q", string(b))
	}
}

func TestNewLogger_UnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "devnet.log")
	if err := NewLogger(path, true, ""); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestAttachSentry_InvalidDSN(t *testing.T) {
	l := zap.NewNop()
	if got := attachSentry(l, zapsentry.NewSentryClientFromDSN("not a dsn")); got != l {
		t.Error("expected logger to be returned unchanged when sentry cannot start")
	}
}

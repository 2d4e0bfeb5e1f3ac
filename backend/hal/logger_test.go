package hal

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDriverSetLogger(t *testing.T) {
	orig := slogger()
	t.Cleanup(func() { loggerPtr.Store(orig) })

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	var d *Driver
	d.SetLogger(l)
	if slogger() != l {
		t.Fatal("Driver.SetLogger did not replace the backend logger")
	}
	slogger().Debug("hal: test")
	if !strings.Contains(buf.String(), "hal: test") {
		t.Errorf("log output = %q", buf.String())
	}

	d.SetLogger(nil)
	if slogger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore the silent logger")
	}
}

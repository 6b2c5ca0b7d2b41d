package httpapi

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("short query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}

	prev := defaultLogLevel
	defer func() { defaultLogLevel = prev }()
	SetDefaultLogLevel("info")
	r = httptest.NewRequest("GET", "/x", nil)
	if got := requestLogLevel(r); got != LevelInfo {
		t.Fatalf("default level not used: %v", got)
	}
}

func TestLogStartEnd_Levels(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog
	defer func() { zlog = prev }()
	SetLogger(zerolog.New(&buf))

	r := httptest.NewRequest("POST", "/inpaint", nil)
	start := time.Now()

	logStart(r, LevelError, "inpaint", nil)
	logEnd(r, LevelError, "inpaint", 200, start, nil)
	if buf.Len() != 0 {
		t.Fatalf("error level should suppress successful requests: %q", buf.String())
	}

	logEnd(r, LevelError, "inpaint", 500, start, errors.New("boom"))
	if !strings.Contains(buf.String(), `"message":"inpaint end"`) || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("failure not logged: %q", buf.String())
	}

	buf.Reset()
	logStart(r, LevelInfo, "inpaint", map[string]any{"image_bytes": 10})
	if !strings.Contains(buf.String(), `"image_bytes":10`) || !strings.Contains(buf.String(), "inpaint start") {
		t.Fatalf("start line missing fields: %q", buf.String())
	}

	buf.Reset()
	logEnd(r, LevelOff, "inpaint", 500, start, errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("off level should log nothing: %q", buf.String())
	}
}

package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pinmark/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "disabled",
			cfg:     &config.LoggingConfig{Level: "disabled"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name:    "file output",
			cfg:     &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "pinmark.log")},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console bytes.Buffer
			l, err := NewWithWriter(tt.cfg, &console)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWithWriter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && l == nil {
				t.Error("NewWithWriter() returned nil logger")
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var console bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "warn"}, &console)
	require.NoError(t, err)

	l.Info("quiet line")
	l.Warn("loud line")

	out := console.String()
	assert.NotContains(t, out, "quiet line")
	assert.Contains(t, out, "loud line")
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinmark.log")
	var console bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "debug", File: path}, &console)
	require.NoError(t, err)

	l.WithField("page", 3).Info("Fragment appended")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	data := string(raw)
	assert.Contains(t, data, `"message":"Fragment appended"`)
	assert.Contains(t, data, `"page":3`)
	assert.Contains(t, data, `"app":"pinmark"`)
	assert.Contains(t, console.String(), "Fragment appended")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"fatal", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithField("selector", "a.like").
		WithFields(map[string]interface{}{
			"action":  "like",
			"count":   11,
			"elapsed": 250 * time.Millisecond,
		}).
		Info("toggle flipped")

	output := buf.String()
	assert.Contains(t, output, "toggle flipped")
	assert.Contains(t, output, `"selector":"a.like"`)
	assert.Contains(t, output, `"action":"like"`)
	assert.Contains(t, output, `"count":11`)
}

func TestWithFieldDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	_ = l.WithField("child", true)
	l.Info("parent line")

	assert.NotContains(t, buf.String(), "child")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("connection refused")).Error("fetch failed")
	output := buf.String()
	assert.Contains(t, output, "fetch failed")
	assert.Contains(t, output, "connection refused")
}

func TestLogRequest(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "POST", "http://site/like/", 200, 12*time.Millisecond)
	LogRequest(tl, "GET", "http://site/?page=9", 404, time.Millisecond)
	LogRequest(tl, "POST", "http://site/like/", 502, time.Millisecond)

	require.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	require.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	require.Len(t, tl.GetMessagesByLevel("ERROR"), 1)

	msg, ok := tl.Find("HTTP request client error")
	require.True(t, ok)
	assert.Equal(t, 404, msg.Fields["status_code"])
}

func TestTestLoggerScopes(t *testing.T) {
	tl := NewTestLogger()
	boom := errors.New("boom")

	scoped := tl.WithField("component", "scroll").WithError(boom)
	scoped.WarnWithFields("stalled", map[string]interface{}{"page": 2})
	tl.Info("unscoped")

	msg, ok := tl.Find("stalled")
	require.True(t, ok)
	assert.Equal(t, "WARN", msg.Level)
	assert.Equal(t, "scroll", msg.Fields["component"])
	assert.Equal(t, 2, msg.Fields["page"])
	assert.Equal(t, boom, msg.Error)

	plain, ok := tl.Find("unscoped")
	require.True(t, ok)
	assert.Nil(t, plain.Fields)
	assert.True(t, tl.HasMessageContaining("stall"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").WithError(errors.New("x")).Error("ignored")
	l.InfoWithFields("ignored", nil)
}

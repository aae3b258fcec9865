package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Writer: &buf})

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{"production uses json", "production", true},
		{"development uses pretty", "development", false},
		{"empty uses pretty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Environment: tt.environment, Writer: &buf})
			logger.Info("test")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"test"`)
			} else {
				assert.Contains(t, buf.String(), "INF")
				assert.NotContains(t, buf.String(), `"msg"`)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), "shown")
}

func TestPrettyHandler_Attributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil))

	logger.With("batch_id", "b-1").Info("batch committed",
		"books_created", 2,
		"file_name", "My Clippings.txt",
		"took", 1500*time.Millisecond,
	)

	out := buf.String()
	assert.Contains(t, out, "batch_id=b-1")
	assert.Contains(t, out, "books_created=2")
	assert.Contains(t, out, `file_name="My Clippings.txt"`)
	assert.Contains(t, out, "took=1.5s")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestPrettyHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil))

	logger.WithGroup("commit").With("batch", "b-1").Info("done",
		slog.Group("saved", slog.Int("books", 1), slog.Int("clippings", 3)),
	)

	out := buf.String()
	assert.Contains(t, out, "commit.batch=b-1")
	assert.Contains(t, out, "commit.saved.books=1")
	assert.Contains(t, out, "commit.saved.clippings=3")
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{AddSource: true}))

	logger.Info("with source")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "plain", formatValue(slog.StringValue("plain")))
	assert.Equal(t, `"two words"`, formatValue(slog.StringValue("two words")))
	assert.Equal(t, `""`, formatValue(slog.StringValue("")))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
	assert.Equal(t, "true", formatValue(slog.BoolValue(true)))
	assert.Equal(t, "2024-01-02T03:04:05Z",
		formatValue(slog.TimeValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	require.NotNil(t, logger)
	logger.Error("goes nowhere")
}

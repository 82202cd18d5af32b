package prettylog

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type secret string

func (s secret) ToLog() any {
	return "***"
}

func TestHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandlerWithWriter(&buf, slog.LevelInfo, false))

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.With("file", "cert.pem").WithGroup("pfx").Info("extracted",
		"fingerprint", []byte{0xca, 0xfe},
		"password", secret("password123"),
		"err", errors.New("boom"),
	)

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "INFO: extracted")
	assert.Contains(t, out, `"file": "cert.pem"`)
	assert.Contains(t, out, `"pfx.fingerprint": "cafe"`)
	assert.Contains(t, out, `"pfx.password": "***"`)
	assert.Contains(t, out, `"pfx.err": "boom"`)
	assert.NotContains(t, out, "password123")
	assert.NotContains(t, out, "\033[")
}

func TestHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandlerWithWriter(&buf, slog.LevelDebug, true))
	logger.Warn("careful")
	assert.Contains(t, buf.String(), colorize(yellow, "WARN:"))
}

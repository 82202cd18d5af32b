// based on https://dusted.codes/creating-a-pretty-console-logger-using-gos-slog-package
package prettylog

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	timeFormat = "15:04:05.000"
)

const (
	reset = "\033[0m"

	darkGray  = 90
	cyan      = 36
	yellow    = 33
	lightRed  = 91
	white     = 97
	lightBlue = 94
)

func colorize(colorCode int, v string) string {
	return "\033[" + strconv.Itoa(colorCode) + "m" + v + reset
}

type handler struct {
	level  slog.Leveler
	color  bool
	mu     *sync.Mutex
	output io.Writer
	attrs  []slog.Attr
	groups []string
}

// NewHandler returns a colorized handler writing to stderr.
func NewHandler(level slog.Leveler) slog.Handler {
	return NewHandlerWithWriter(os.Stderr, level, true)
}

// NewHandlerWithWriter returns a handler writing to w. Without color the
// output contains no escape sequences.
func NewHandlerWithWriter(w io.Writer, level slog.Leveler, color bool) slog.Handler {
	return &handler{
		level:  level,
		color:  color,
		mu:     &sync.Mutex{},
		output: w,
	}
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return &h2
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

func (h *handler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) > 0 {
		a.Key = strings.Join(h.groups, ".") + "." + a.Key
	}
	return a
}

func (h *handler) paint(colorCode int, v string) string {
	if !h.color {
		return v
	}
	return colorize(colorCode, v)
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = h.paint(darkGray, level)
	case slog.LevelInfo:
		level = h.paint(cyan, level)
	case slog.LevelWarn:
		level = h.paint(yellow, level)
	case slog.LevelError:
		level = h.paint(lightRed, level)
	}

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		a = h.qualify(a)
		attrs[a.Key] = a.Value.Resolve().Any()
		return true
	})

	var sb strings.Builder
	if !r.Time.IsZero() {
		sb.WriteString(h.paint(darkGray, r.Time.Format(timeFormat)))
		sb.WriteString(" ")
	}
	sb.WriteString(level)
	sb.WriteString(" ")
	sb.WriteString(h.paint(white, r.Message))
	if len(attrs) > 0 {
		sb.WriteString(" ")
		sb.WriteString(h.paint(lightBlue, attributesToString(attrs)))
	}
	sb.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.output, sb.String())
	return err
}

func attributesToString(attrs map[string]any) string {
	for k, v := range attrs {
		v = convert(v)
		if _, err := json.Marshal(v); err != nil {
			attrs[k] = fmt.Sprintf("%v", v)
		} else {
			attrs[k] = v
		}
	}

	asJson, err := json.MarshalIndent(attrs, "  ", "  ")
	if err != nil {
		return fmt.Sprintf("%v", attrs)
	}
	return string(asJson)
}

type Loggable interface {
	ToLog() any
}

func convert(value any) any {
	switch v := value.(type) {
	case nil:
		return "nil"
	case error:
		return v.Error()
	case Loggable:
		return v.ToLog()
	case []byte:
		return hex.EncodeToString(v)
	case fmt.Stringer:
		return v.String()
	}
	return value
}

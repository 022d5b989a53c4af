// ABOUTME: slog setup shared by the face binaries: colorized text for terminals or JSON.
// ABOUTME: The color handler pre-renders bound attrs and serializes writes across goroutines.

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// New builds a logger writing to stdout. format "json" selects the JSON
// handler; anything else selects the color handler.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(&colorHandler{out: w, mu: &sync.Mutex{}, level: lvl})
}

var (
	keyColor  = color.New(color.FgHiBlack)
	errColor  = color.New(color.FgRed, color.Bold)
	levelTags = []struct {
		min   slog.Level
		tag   string
		color *color.Color
	}{
		{slog.LevelError, "ERR", errColor},
		{slog.LevelWarn, "WRN", color.New(color.FgYellow)},
		{slog.LevelInfo, "INF", color.New(color.FgCyan)},
		{slog.LevelDebug, "DBG", color.New(color.FgMagenta)},
	}
)

func levelTag(l slog.Level) string {
	for _, t := range levelTags {
		if l >= t.min {
			return t.color.Sprint(t.tag)
		}
	}
	return "???"
}

// colorHandler writes "15:04:05 INF message key=value" lines.
type colorHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Level

	group string // dotted prefix applied to attrs added after WithGroup
	bound string // attrs from WithAttrs, already rendered
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(keyColor.Sprint(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}

	b.WriteString(keyColor.Sprint(" " + prefix + a.Key + "="))
	v := a.Value.String()
	if a.Key == "error" || a.Key == "err" {
		v = errColor.Sprint(v)
	} else if strings.ContainsAny(v, " =\"") {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.bound)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	next := *h
	next.bound = b.String()
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group += name + "."
	return &next
}

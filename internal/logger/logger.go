// Package logger builds the process slog handler from LOG_LEVEL and
// LOG_FORMAT and trims source paths to the module root.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

var (
	ErrLevel  = errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	ErrFormat = errors.New("LOG_FORMAT must be json or text")
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Case is ignored.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: got %q", ErrLevel, s)
}

// New returns a logger writing to w. rootPath is stripped from the source
// file of every record so log lines stay short.
func New(w io.Writer, level, format, rootPath string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	ho := slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, &ho)
	case "text", "":
		h = slog.NewTextHandler(w, &ho)
	default:
		return nil, fmt.Errorf("%w: got %q", ErrFormat, format)
	}

	root := ""
	if rootPath != "" {
		root = strings.TrimSuffix(rootPath, "/") + "/"
	}
	return slog.New(&handler{Handler: h, root: root}), nil
}

// Setup installs a stderr logger as the slog default and returns it.
func Setup(level, format, rootPath string) (*slog.Logger, error) {
	l, err := New(os.Stderr, level, format, rootPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}

// handler adds a source attr to every record that carries a caller PC. The
// file is shown relative to root when it lives under it, and as the full
// path otherwise.
type handler struct {
	slog.Handler
	root string
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if r.PC != 0 {
		r = r.Clone()
		r.AddAttrs(slog.Any(slog.SourceKey, h.source(r.PC)))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{Handler: h.Handler.WithAttrs(attrs), root: h.root}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{Handler: h.Handler.WithGroup(name), root: h.root}
}

func (h *handler) source(pc uintptr) *slog.Source {
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return &slog.Source{
		Function: f.Function,
		File:     strings.TrimPrefix(f.File, h.root),
		Line:     f.Line,
	}
}

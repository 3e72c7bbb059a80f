package log

import (
	"context"
	"io"
	"log/slog"
)

// SecureHandler wraps an slog.Handler and passes every record through a
// Redactor first. Attributes with sensitive names are masked, string
// values are checked for secret shapes and registered literals, errors are
// rendered and scrubbed, and []string values are treated as command lines.
// LogValuers are resolved before inspection, so a value that renders
// itself lazily is scrubbed too.
type SecureHandler struct {
	handler  slog.Handler
	redactor *Redactor
}

// HandlerOption configures a SecureHandler.
type HandlerOption func(*SecureHandler)

// WithRedactor shares r with the handler, so secrets registered on r after
// the logger was built are masked too.
func WithRedactor(r *Redactor) HandlerOption {
	return func(h *SecureHandler) {
		h.redactor = r
	}
}

// NewSecureHandler wraps handler, or slog.Default().Handler() when nil.
func NewSecureHandler(handler slog.Handler, opts ...HandlerOption) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}

	h := &SecureHandler{handler: handler}
	for _, opt := range opts {
		opt(h)
	}

	if h.redactor == nil {
		h.redactor = NewRedactor()
	}
	return h
}

// Redactor returns the redactor used by the handler.
func (h *SecureHandler) Redactor() *Redactor {
	return h.redactor
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle scrubs the message and attributes and passes the record on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.redactor.Text(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs scrubs attrs once, when they are attached.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), redactor: h.redactor}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), redactor: h.redactor}
}

func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		sanitized := make([]slog.Attr, len(group))
		for i, ga := range group {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if SensitiveName(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactor.Value(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, h.redactor.Text(v.Error()))
		case []string:
			return slog.Any(a.Key, h.redactor.Args(v))
		}
	}
	return a
}

// NewSecureLogger creates a text logger on w that masks secrets. verbose
// selects Debug, otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewSecureHandler(text, opts...))
}

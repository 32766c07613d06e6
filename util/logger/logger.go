package logger

/*
 * vplat - Simulation log handler for slog
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler routes simulation log records: everything goes to the
// optional log file, records above debug level are mirrored to
// stderr, and debug records reach stderr only when the debug flag is
// set. The kernel thread and the server network threads log
// concurrently, so one mutex serializes the writes.
//
// Components attach themselves with logger.With("mem0") so every line
// names the object it came from.
type Handler struct {
	out    io.Writer // log file, may be nil
	mu     *sync.Mutex
	level  slog.Leveler
	debug  bool
	scope  string // component prefix from WithGroup
	fields string // preformatted key=value pairs from WithAttrs
}

// NewHandler creates a handler writing to the given log file.
func NewHandler(file io.Writer, level slog.Leveler, debug bool) *Handler {
	if level == nil {
		level = slog.LevelDebug
	}
	return &Handler{
		out:   file,
		mu:    &sync.Mutex{},
		level: level,
		debug: debug,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	var sb strings.Builder
	sb.WriteString(h.fields)
	for _, a := range attrs {
		appendAttr(&sb, h.scope, a)
	}
	nh.fields = sb.String()
	return &nh
}

func (h *Handler) WithGroup(name string) slog.Handler {
	nh := *h
	if name != "" {
		nh.scope = h.scope + name + "."
	}
	return &nh
}

func appendAttr(sb *strings.Builder, scope string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(scope)
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	sb.WriteString(a.Value.String())
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("2006/01/02 15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(r.Level.String())
	sb.WriteString(": ")
	sb.WriteString(r.Message)
	sb.WriteString(h.fields)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, h.scope, a)
		return true
	})
	sb.WriteByte('\n')
	line := []byte(sb.String())

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(line)
	}
	if h.debug || r.Level > slog.LevelDebug {
		_, err = os.Stderr.Write(line)
	}
	return err
}

// Setup installs the default logger writing to an optional file and
// returns it. With debug set, debug records are mirrored to stderr as
// well.
func Setup(file io.Writer, debug bool) *slog.Logger {
	log := slog.New(NewHandler(file, slog.LevelDebug, debug))
	slog.SetDefault(log)
	return log
}

// With returns a logger scoped to one platform component.
func With(component string) *slog.Logger {
	return slog.Default().With("object", component)
}

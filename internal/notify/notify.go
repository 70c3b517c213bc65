// Package notify carries user-facing feedback out of the controllers:
// short notifications ("Product added!") and error displays.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

// Sink receives user-facing messages. Implementations must be safe for
// concurrent use: controllers call them from store delivery goroutines.
type Sink interface {
	Notify(message string)
	Error(message string)
}

// Discard drops every message.
type Discard struct{}

// Notify implements Sink.
func (Discard) Notify(string) {}

// Error implements Sink.
func (Discard) Error(string) {}

// LogSink writes messages to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink backed by logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(message string) {
	s.logger.Info("notification", "message", message)
}

// Error implements Sink.
func (s *LogSink) Error(message string) {
	s.logger.Error("error displayed", "message", message)
}

// TerminalSink prints messages for a person at a terminal: notifications
// in green, errors in red on the error writer.
type TerminalSink struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewTerminalSink creates a terminal sink.
func NewTerminalSink(out, errOut io.Writer) *TerminalSink {
	return &TerminalSink{out: out, err: errOut}
}

// Notify implements Sink.
func (s *TerminalSink) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, color.GreenString("✔ %s", message))
}

// Error implements Sink.
func (s *TerminalSink) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.err, color.RedString("✖ %s", message))
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu            sync.Mutex
	notifications []string
	errors        []string
}

// Notify implements Sink.
func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, message)
}

// Error implements Sink.
func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

// Notifications returns a copy of the notifications received so far.
func (r *Recorder) Notifications() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notifications...)
}

// Errors returns a copy of the errors received so far.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
	r.errors = nil
}

// Multi fans a message out to several sinks.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(message string) {
	for _, s := range m {
		s.Notify(message)
	}
}

// Error implements Sink.
func (m Multi) Error(message string) {
	for _, s := range m {
		s.Error(message)
	}
}

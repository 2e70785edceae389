package logger

import (
	"context"
	"strings"
	"sync"
)

// TestLogger captures log lines in memory so tests can assert on them
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

func (l *TestLogger) root() *scopedTestLogger {
	return &scopedTestLogger{sink: l}
}

func (l *TestLogger) Debug(msg string) { l.root().Debug(msg) }
func (l *TestLogger) Info(msg string)  { l.root().Info(msg) }
func (l *TestLogger) Warn(msg string)  { l.root().Warn(msg) }
func (l *TestLogger) Error(msg string) { l.root().Error(msg) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.root().DebugWithFields(msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.root().InfoWithFields(msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.root().WarnWithFields(msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.root().ErrorWithFields(msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.root().WithField(key, value)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.root().WithFields(fields)
}

func (l *TestLogger) WithError(err error) Logger {
	return l.root().WithError(err)
}

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}

func (l *TestLogger) record(m LogMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
}

// GetMessages returns a copy of every captured message
func (l *TestLogger) GetMessages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	messages := make([]LogMessage, len(l.messages))
	copy(messages, l.messages)
	return messages
}

// GetMessagesByLevel returns all messages of a specific level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var filtered []LogMessage
	for _, msg := range l.GetMessages() {
		if msg.Level == level {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// HasMessage reports whether a message with exactly this text was logged
func (l *TestLogger) HasMessage(text string) bool {
	_, ok := l.Find(text)
	return ok
}

// HasMessageContaining reports whether any message contains substr
func (l *TestLogger) HasMessageContaining(substr string) bool {
	for _, msg := range l.GetMessages() {
		if strings.Contains(msg.Message, substr) {
			return true
		}
	}
	return false
}

// Find returns the first message with exactly this text
func (l *TestLogger) Find(text string) (LogMessage, bool) {
	for _, msg := range l.GetMessages() {
		if msg.Message == text {
			return msg, true
		}
	}
	return LogMessage{}, false
}

// HasError checks if an error was logged
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("ERROR")) > 0
}

// Clear drops all captured messages
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

// scopedTestLogger carries fields and an error for a TestLogger child
type scopedTestLogger struct {
	sink   *TestLogger
	fields map[string]interface{}
	err    error
}

func (s *scopedTestLogger) emit(level, msg string, extra map[string]interface{}) {
	var fields map[string]interface{}
	if len(s.fields)+len(extra) > 0 {
		fields = s.merge(extra)
	}
	s.sink.record(LogMessage{Level: level, Message: msg, Fields: fields, Error: s.err})
}

func (s *scopedTestLogger) merge(extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(s.fields)+len(extra))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func (s *scopedTestLogger) Debug(msg string) { s.emit("DEBUG", msg, nil) }
func (s *scopedTestLogger) Info(msg string)  { s.emit("INFO", msg, nil) }
func (s *scopedTestLogger) Warn(msg string)  { s.emit("WARN", msg, nil) }
func (s *scopedTestLogger) Error(msg string) { s.emit("ERROR", msg, nil) }

func (s *scopedTestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	s.emit("DEBUG", msg, fields)
}

func (s *scopedTestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	s.emit("INFO", msg, fields)
}

func (s *scopedTestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	s.emit("WARN", msg, fields)
}

func (s *scopedTestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	s.emit("ERROR", msg, fields)
}

func (s *scopedTestLogger) WithField(key string, value interface{}) Logger {
	return s.WithFields(map[string]interface{}{key: value})
}

func (s *scopedTestLogger) WithFields(fields map[string]interface{}) Logger {
	return &scopedTestLogger{sink: s.sink, fields: s.merge(fields), err: s.err}
}

func (s *scopedTestLogger) WithError(err error) Logger {
	return &scopedTestLogger{sink: s.sink, fields: s.fields, err: err}
}

func (s *scopedTestLogger) WithContext(ctx context.Context) Logger {
	return s
}

package logger

// Logger is the minimal structured logging interface the engine depends on.
// Implementations accept alternating key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation ID per logged decision. It must be
// cheap and safe for concurrent calls.
type TraceIDFunc func() string

// NullLogger discards everything; handy in tests
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (n *NullLogger) Debug(msg string, keyvals ...any) {}
func (n *NullLogger) Info(msg string, keyvals ...any)  {}
func (n *NullLogger) Error(msg string, keyvals ...any) {}

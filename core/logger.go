package core

// Logger is implemented by services/logger backends.
// Implementations may inspect args for well-known types (eg. user.User)
// to enrich error reports.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

package crm

import "github.com/gavasques/aluno-adm-portal-crm-sub009/core"

// Notifier is the UI toast sink: fire-and-forget, no return value consumed.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type loggerNotifier struct {
	logger core.Logger
}

var _ Notifier = (*loggerNotifier)(nil)

// NewLoggerNotifier routes notifications to the app logger. The web frontend
// renders its own toasts off the API responses; server side we only keep a
// trace.
func NewLoggerNotifier(logger core.Logger) Notifier {
	return &loggerNotifier{logger: logger}
}

func (n *loggerNotifier) Success(msg string) { n.logger.Info(msg) }
func (n *loggerNotifier) Error(msg string)   { n.logger.Warn(msg) }

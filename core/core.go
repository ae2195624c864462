package core

import "github.com/hupe1980/vaxmesh/logging"

// loggerAdapter gives run and tool contexts LogDebug/LogInfo/LogWarn/LogError
// helpers bound to the invocation's identity (session key, agent, call).
type loggerAdapter struct {
	logger logging.Logger
}

// newLoggerAdapter binds kv to l. A nil l logs nothing.
func newLoggerAdapter(l logging.Logger, kv ...any) *loggerAdapter {
	if l == nil {
		return &loggerAdapter{logger: logging.NoOpLogger{}}
	}

	if len(kv) > 0 {
		l = logging.With(l, kv...)
	}

	return &loggerAdapter{logger: l}
}

// Logger returns the bound logger.
func (l *loggerAdapter) Logger() logging.Logger {
	return l.logger
}

func (l *loggerAdapter) LogDebug(msg string, args ...any) { l.logger.Debug(msg, args...) }

func (l *loggerAdapter) LogInfo(msg string, args ...any) { l.logger.Info(msg, args...) }

func (l *loggerAdapter) LogWarn(msg string, args ...any) { l.logger.Warn(msg, args...) }

func (l *loggerAdapter) LogError(msg string, args ...any) { l.logger.Error(msg, args...) }

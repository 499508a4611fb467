package api

type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (l noopLogger) Debugf(format string, args ...interface{}) {}
func (l noopLogger) Infof(format string, args ...interface{})  {}
func (l noopLogger) Warnf(format string, args ...interface{})  {}
func (l noopLogger) Errorf(format string, args ...interface{}) {}

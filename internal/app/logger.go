package app

import "github.com/heroiclabs/nakama-common/runtime"

// nopLogger discards everything. Components fall back to it when no logger is injected.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) WithField(string, interface{}) runtime.Logger {
	return nopLogger{}
}
func (nopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return nopLogger{}
}
func (nopLogger) Fields() map[string]interface{} {
	return nil
}

func orNop(logger runtime.Logger) runtime.Logger {
	if logger == nil {
		return nopLogger{}
	}
	return logger
}

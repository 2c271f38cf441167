package nakama

import (
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// gRPC status codes used for runtime errors returned from RPCs.
const (
	codeOK = iota
	codeCancelled
	codeUnknown
	codeInvalidArgument
	codeDeadlineExceeded
	codeNotFound
	codeAlreadyExists
	codePermissionDenied
	codeResourceExhausted
	codeFailedPrecondition
	codeAborted
	codeOutOfRange
	codeUnimplemented
	codeInternal
	codeUnavailable
	codeDataLoss
	codeUnauthenticated
)

// logErrorWithMessageAndCode wraps err, logs the full chain and returns it as a runtime error.
func logErrorWithMessageAndCode(logger runtime.Logger, err error, code int, format string, v ...interface{}) (string, error) {
	err = eris.Wrapf(err, format, v...)
	logger.Error(eris.ToString(err, true))
	return "", runtime.NewError(err.Error(), code)
}

// logDebugWithMessageAndCode is logErrorWithMessageAndCode for expected client mistakes.
func logDebugWithMessageAndCode(logger runtime.Logger, err error, code int, format string, v ...interface{}) (string, error) {
	err = eris.Wrapf(err, format, v...)
	logger.Debug(eris.ToString(err, true))
	return "", runtime.NewError(err.Error(), code)
}

// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/davecgh/go-spew/spew"
	"github.com/jrick/logrotate/rotator"
)

const (
	// logSubsystem defines tag of the package log lines.
	logSubsystem = "TXBD"
	// maxLogFileSizeKB defines size of the log file to be rolled.
	maxLogFileSizeKB = 10 * 1024
	// maxLogRolls defines how many rolled log files are kept.
	maxLogRolls = 3
)

// log is a logger that is initialized with no output filters. This
// means the package will not perform any logging by default until the caller
// requests it.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	DisableLog()
}

// DisableLog disables all library log output. Logging output is disabled
// by default until UseLogger is called.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
// This should be used in preference to SetLogWriter if the caller is also
// using btclog.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// NewFileLogger returns logger of provided level writing to rotated logFile. Returned closer
// must be closed on shutdown to flush the file.
func NewFileLogger(logFile string, level btclog.Level) (btclog.Logger, io.Closer, error) {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	r, err := rotator.New(logFile, maxLogFileSizeKB, false, maxLogRolls)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file rotator: %w", err)
	}

	logger := btclog.NewBackend(r).Logger(logSubsystem)
	logger.SetLevel(level)

	return logger, r, nil
}

// logClosure is used to provide a closure over expensive logging operations so
// don't have to be performed when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}

// spewClosure returns a log closure dumping provided value with spew.
func spewClosure(v interface{}) logClosure {
	return newLogClosure(func() string {
		return spew.Sdump(v)
	})
}

// Package loggertest provides a logger whose entries are captured in memory.
package loggertest

import (
	"tradestream/internal/logger"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// New returns a debug-level logger whose entries are captured by the
// returned hook instead of being written anywhere.
func New() (logger.Logger, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return logger.Wrap(l), hook
}

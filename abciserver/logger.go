package abciserver

import (
	tmlog "github.com/tendermint/tendermint/libs/log"

	"github.com/blockberries/ledgerberry/logging"
)

// tmLogger routes Tendermint library logs into the ledger logger.
type tmLogger struct {
	l *logging.Logger
}

// NewTMLogger adapts l to the Tendermint logger interface.
func NewTMLogger(l *logging.Logger) tmlog.Logger {
	return tmLogger{l: l}
}

func (t tmLogger) Debug(msg string, keyvals ...interface{}) { t.l.Debug(msg, keyvals...) }
func (t tmLogger) Info(msg string, keyvals ...interface{})  { t.l.Info(msg, keyvals...) }
func (t tmLogger) Error(msg string, keyvals ...interface{}) { t.l.Error(msg, keyvals...) }

func (t tmLogger) With(keyvals ...interface{}) tmlog.Logger {
	return tmLogger{l: t.l.With(keyvals...)}
}

// Package eventlog logs broker connection lifecycle events.
package eventlog

import (
	"go.uber.org/zap"

	"github.com/miladsoleymani/lakesink/core"
)

type listener struct {
	log *zap.SugaredLogger
}

// New returns a core.EventListener that writes every event to log:
// reconnects at info, reconnect attempts at warn and interruptions at error.
func New(log *zap.SugaredLogger) core.EventListener {
	return &listener{log: log}
}

func (l *listener) OnEvent(e core.Event) {
	kv := []interface{}{"cause", e.Cause, "message", e.Message}
	switch e.Kind {
	case core.EventReconnected:
		l.log.Infow("on_reconnected", kv...)
	case core.EventReconnecting:
		l.log.Warnw("on_reconnecting", kv...)
	case core.EventInterrupted:
		l.log.Errorw("on_service_interrupted", kv...)
	default:
		l.log.Warnw("unknown broker event", append(kv, "kind", e.Kind.String())...)
	}
}

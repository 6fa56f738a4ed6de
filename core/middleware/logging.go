package middleware

import (
	"time"

	"go.uber.org/zap"

	"github.com/miladsoleymani/lakesink/core"
)

// Logging returns middleware that logs every message with its processing
// duration. Failures are logged at error level; the error is passed through
// unchanged so the router can withhold the acknowledgement.
func Logging(log *zap.SugaredLogger) core.MiddlewareFunc {
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) error {
			log.Debugw("received message",
				"topic", c.Topic(),
				"payload", string(c.Payload()),
			)

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			if err != nil {
				log.Errorw("failed to process message",
					"topic", c.Topic(),
					"pattern", c.Pattern(),
					"bytes", len(c.Payload()),
					"elapsed", elapsed,
					"error", err,
				)
			} else {
				log.Infow("processed message",
					"topic", c.Topic(),
					"bytes", len(c.Payload()),
					"acked", c.Acked(),
					"elapsed", elapsed,
				)
			}
			return err
		}
	}
}

package middleware

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/miladsoleymani/lakesink/core"
)

// Recovery returns middleware that recovers from panics in handlers,
// logs the stack trace, and returns the panic as an error. The message is
// left unacknowledged.
func Recovery(log *zap.SugaredLogger) core.MiddlewareFunc {
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					log.Errorw("panic recovered",
						"topic", c.Topic(),
						"panic", r,
						"stack", string(buf[:n]),
					)
					err = fmt.Errorf("lakesink: panic recovered: %v", r)
				}
			}()
			return next(c)
		}
	}
}

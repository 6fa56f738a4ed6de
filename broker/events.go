package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/miladsoleymani/lakesink/core"
)

// Listeners is an embeddable registry of core.EventListener. Plugins embed
// it to satisfy core.Broker.AddEventListener.
type Listeners struct {
	mu sync.RWMutex
	ls []core.EventListener
}

// AddEventListener registers l for all subsequent events.
func (l *Listeners) AddEventListener(el core.EventListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ls = append(l.ls, el)
}

// Emit delivers an event to every registered listener.
func (l *Listeners) Emit(kind core.EventKind, cause error, msg string) {
	l.mu.RLock()
	ls := make([]core.EventListener, len(l.ls))
	copy(ls, l.ls)
	l.mu.RUnlock()

	e := core.Event{Kind: kind, Cause: cause, Message: msg}
	for _, el := range ls {
		el.OnEvent(e)
	}
}

// Permanent marks err as not worth retrying. Retry and Reconnect return
// it unwrapped without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op until it succeeds or the policy is exhausted, emitting a
// reconnecting event before each retry and a reconnected event if a retry
// succeeds. It returns the last error.
func Retry(ctx context.Context, p RetryPolicy, events *Listeners, what string, op func(ctx context.Context) error) error {
	attempts := p.retries()
	retries, err := retry(ctx, p, op, func(err error, n int, next time.Duration) {
		events.Emit(core.EventReconnecting, err,
			fmt.Sprintf("%s: attempt %d/%d failed, retrying in %s", what, n, attempts, next))
	})
	if err != nil {
		return err
	}
	if retries > 0 {
		events.Emit(core.EventReconnected, nil,
			fmt.Sprintf("%s: connected after %d retries", what, retries))
	}
	return nil
}

// Reconnect restores a session lost after a successful connect. Every
// attempt is preceded by a reconnecting event, the first one carrying
// cause. Success emits reconnected; an exhausted policy emits interrupted.
// Nothing further is emitted once ctx is cancelled.
func Reconnect(ctx context.Context, p RetryPolicy, events *Listeners, what string, cause error, op func(ctx context.Context) error) error {
	total := p.retries() + 1
	events.Emit(core.EventReconnecting, cause,
		fmt.Sprintf("%s lost, reconnecting: attempt 1/%d", what, total))

	retries, err := retry(ctx, p, op, func(err error, n int, next time.Duration) {
		events.Emit(core.EventReconnecting, err,
			fmt.Sprintf("%s: attempt %d/%d in %s", what, n+1, total, next))
	})
	if err != nil {
		if ctx.Err() == nil {
			events.Emit(core.EventInterrupted, err,
				fmt.Sprintf("%s: gave up after %d attempts", what, retries+1))
		}
		return err
	}
	events.Emit(core.EventReconnected, nil, fmt.Sprintf("%s re-established", what))
	return nil
}

func retry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error, notify func(err error, n int, next time.Duration)) (int, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(p.retries())),
		ctx,
	)
	retries := 0
	err := backoff.RetryNotify(func() error {
		return op(ctx)
	}, b, func(err error, next time.Duration) {
		retries++
		notify(err, retries, next)
	})
	return retries, err
}

// Package lakesink relays messages from a broker queue into per-topic
// append-only files. It re-exports the core types so an embedding program
// can write:
//
//	r := lakesink.New(b, "adls")
//	r.Handle("#", lakesink.NewSink(store).Handle)
//	r.Start(ctx)
package lakesink

import (
	"github.com/miladsoleymani/lakesink/core"
	"github.com/miladsoleymani/lakesink/sink"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Message     = core.Message
	Context     = core.Context
	HandlerFunc = core.HandlerFunc
	Broker      = core.Broker
	Router      = core.Router
	Store       = sink.Store
	Sink        = sink.Sink
)

// New creates a Router that consumes queue through b.
func New(b Broker, queue string) *Router {
	return core.New(b, queue)
}

// NewSink creates a Sink appending to store.
func NewSink(store Store, opts ...sink.Option) *Sink {
	return sink.New(store, opts...)
}

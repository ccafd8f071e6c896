package runner

import (
	"context"
	"os"
	"os/signal"
)

// SignalContext returns a context that is cancelled the first time one
// of the given OS signals arrives, defaulting to interrupt. Pass the
// result to Run or Start to let an operator stop a bulk run gracefully:
// the engine finishes in-flight items and fallback-fills the rest. The
// returned stop func releases the signal registration; after the first
// signal, delivery reverts to the default disposition, so a second
// interrupt kills the process.
func SignalContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}

	return signal.NotifyContext(parent, sigs...)
}

// Package bulker exposes the bulk task runner builder.
package bulker

import (
	"github.com/adamwoolhether/bulker/runner"
)

// New instantiates a new *runner.Runner with the provided options.
// If not specified, the default concurrency, retry, and fallback
// settings are used.
func New[T, R any](work runner.WorkFunc[T, R], opts ...runner.Option) (*runner.Runner[T, R], error) {
	return runner.Build(work, opts...)
}

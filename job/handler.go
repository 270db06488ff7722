package job

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// ErrUnknownJobType is returned when no handler is registered for a job's type tag.
var ErrUnknownJobType = errors.New("unknown job type")

// Handler runs jobs of one type.
//
// The registry maps a stored type tag to a handler instead of instantiating
// behaviour by name, so the set of runnable job types is closed and
// enumerable at startup.
type Handler interface {
	// Execute runs the job. A returned error marks the job failed.
	// Handlers read their inputs with job.Param and must not change Status.
	Execute(ctx context.Context, j *Job) error

	// Name returns the type tag this handler serves (e.g. "allocation-scraper").
	Name() string
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	name string
	fn   func(ctx context.Context, j *Job) error
}

// NewHandlerFunc creates a Handler named name that calls fn.
func NewHandlerFunc(name string, fn func(ctx context.Context, j *Job) error) *HandlerFunc {
	return &HandlerFunc{name: name, fn: fn}
}

// Execute calls the wrapped function.
func (h *HandlerFunc) Execute(ctx context.Context, j *Job) error {
	return h.fn(ctx, j)
}

// Name returns the handler's type tag.
func (h *HandlerFunc) Name() string {
	return h.name
}

// Registry manages job handlers by type tag.
// Thread-safe for concurrent handler registration and lookup.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler using its name.
// Panics if a handler is already registered with that name.
func (r *Registry) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := handler.Name()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler already registered for job type: %s", name))
	}
	r.handlers[name] = handler
}

// Get retrieves the handler for a type tag.
// Returns nil if no handler is registered.
func (r *Registry) Get(jobType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[jobType]
}

// Has checks if a handler is registered for a type tag.
func (r *Registry) Has(jobType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[jobType]
	return exists
}

// Names returns all registered type tags in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches the job to the handler registered for its type.
func (r *Registry) Execute(ctx context.Context, j *Job) error {
	handler := r.Get(j.Type)
	if handler == nil {
		return errors.Wrapf(ErrUnknownJobType, "no handler registered for %q", j.Type)
	}
	return handler.Execute(ctx, j)
}

// Package enumerator is the boundary between the fragmenter and the storage
// plugins that know how to split a data source into fragments.
package enumerator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/fedscan/fedscan/pkg/fragment"
)

// Enumerator lists the fragments of one data source.
type Enumerator interface {
	Fragments(ctx context.Context) ([]fragment.Fragment, error)
}

// Factory builds an Enumerator for a request. A factory is resolved once per
// computation and may be called again for every retry attempt, so it must not
// keep state between calls.
type Factory func(req *fragment.RequestContext) (Enumerator, error)

// EnumeratorFunc adapts a function to the Enumerator interface.
type EnumeratorFunc func(ctx context.Context) ([]fragment.Fragment, error)

// Fragments implements Enumerator.
func (f EnumeratorFunc) Fragments(ctx context.Context) ([]fragment.Fragment, error) {
	return f(ctx)
}

// ErrUnknownEnumerator is returned when a request names a fragmenter nobody
// registered.
var ErrUnknownEnumerator = errors.New("unknown fragmenter")

// TransientAuthError marks a failure of the security negotiation with the
// remote system that is expected to succeed when tried again, such as a
// Kerberos "GSS initiate failed" caused by a replayed or expired ticket.
// Plugins wrap their own errors with it; the fragmenter only retries errors
// classified this way.
type TransientAuthError struct {
	Err error
}

// NewTransientAuthError classifies err as a transient authentication failure.
func NewTransientAuthError(err error) error {
	if err == nil {
		return nil
	}
	return &TransientAuthError{Err: err}
}

func (e *TransientAuthError) Error() string {
	return e.Err.Error()
}

func (e *TransientAuthError) Unwrap() error {
	return e.Err
}

// IsTransientAuth reports whether err, or any error it wraps, is a
// TransientAuthError.
func IsTransientAuth(err error) bool {
	var terr *TransientAuthError
	return errors.As(err, &terr)
}

// Registry maps fragmenter names to factories. Names are case-insensitive.
type Registry struct {
	mtx       sync.RWMutex
	factories map[string]Factory
}

// NewRegistry makes an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Resolve returns the factory for the request's fragmenter.
func (r *Registry) Resolve(req *fragment.RequestContext) (Factory, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	f, ok := r.factories[strings.ToLower(req.Fragmenter)]
	if !ok {
		return nil, &unknownEnumeratorError{name: req.Fragmenter, known: r.namesLocked()}
	}
	return f, nil
}

// Names returns the registered fragmenter names, sorted.
func (r *Registry) Names() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type unknownEnumeratorError struct {
	name  string
	known []string
}

func (e *unknownEnumeratorError) Error() string {
	return ErrUnknownEnumerator.Error() + " " + e.name + " (registered: " + strings.Join(e.known, ", ") + ")"
}

func (e *unknownEnumeratorError) Is(target error) bool {
	return target == ErrUnknownEnumerator
}

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/io-da/cqrs"
)

// Scope is a resolution scope. It caches its PerScope instances and closes the
// io.Closer instances it built, in reverse order, when it is closed.
type Scope struct {
	id        uuid.UUID
	tag       string
	parent    *Scope
	container *Container
	closed    *flag

	mu          sync.Mutex
	cells       map[reflect.Type]*cell
	disposables []io.Closer
}

type cell struct {
	once sync.Once
	inst any
	err  error
}

func newScope(c *Container, parent *Scope, tag string) *Scope {
	return &Scope{
		id:        uuid.New(),
		tag:       tag,
		parent:    parent,
		container: c,
		closed:    newFlag(),
		cells:     make(map[reflect.Type]*cell),
	}
}

// ID returns the unique identifier of the scope.
func (s *Scope) ID() uuid.UUID {
	return s.id
}

// Tag returns the tag the scope was begun with.
func (s *Scope) Tag() string {
	return s.tag
}

// Parent returns the scope this one was begun from, nil for the root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsRoot implements cqrs.Scope.
func (s *Scope) IsRoot() bool {
	return s.parent == nil
}

// Closed reports whether Close was called.
func (s *Scope) Closed() bool {
	return s.closed.enabled()
}

// BeginScope implements cqrs.Scope.
func (s *Scope) BeginScope(_ context.Context, tag string) (cqrs.Scope, error) {
	child, err := s.Child(tag)
	if err != nil {
		return nil, err
	}
	return child, nil
}

// Child begins a child scope carrying tag. The caller must Close it.
func (s *Scope) Child(tag string) (*Scope, error) {
	if s.closed.enabled() {
		return nil, ErrScopeClosed
	}
	s.container.scopes.increment()
	return newScope(s.container, s, tag), nil
}

// Close implements cqrs.Scope. Only the first call releases anything.
func (s *Scope) Close() error {
	if !s.closed.enable() {
		return nil
	}
	if !s.IsRoot() {
		s.container.scopes.decrement()
	}

	s.mu.Lock()
	disposables := s.disposables
	s.disposables = nil
	s.mu.Unlock()

	var errs []error
	for _, d := range slices.Backward(disposables) {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve implements cqrs.Scope.
func (s *Scope) Resolve(ctx context.Context, contract reflect.Type) (any, error) {
	if s.closed.enabled() {
		return nil, ErrScopeClosed
	}
	reg, ok := s.container.lookup(contract)
	if !ok {
		return nil, NotRegisteredError{Contract: contract}
	}

	path := resolutionPath(ctx)
	if slices.Contains(path, contract) {
		return nil, CycleError{Path: append(slices.Clone(path), contract)}
	}
	ctx = withResolutionPath(ctx, append(slices.Clone(path), contract))

	switch reg.Lifetime {
	case cqrs.Singleton:
		return s.root().cached(ctx, &reg)
	case cqrs.PerScope:
		return s.cached(ctx, &reg)
	case cqrs.PerMatchingScope:
		owner := s.nearest(reg.MatchingTag)
		if owner == nil {
			return nil, NoMatchingScopeError{Contract: contract, Tag: reg.MatchingTag}
		}
		return owner.cached(ctx, &reg)
	case cqrs.PerOwned:
		return s.owned(ctx, &reg)
	}
	return s.build(ctx, &reg)
}

func (s *Scope) root() *Scope {
	return s.container.root
}

// nearest returns the closest scope carrying tag, starting with s itself.
func (s *Scope) nearest(tag string) *Scope {
	for scope := s; scope != nil; scope = scope.parent {
		if scope.tag == tag {
			return scope
		}
	}
	return nil
}

// cached builds the instance once per scope.
func (s *Scope) cached(ctx context.Context, reg *registration) (any, error) {
	s.mu.Lock()
	c, ok := s.cells[reg.Contract]
	if !ok {
		c = &cell{}
		s.cells[reg.Contract] = c
	}
	s.mu.Unlock()

	c.once.Do(func() {
		c.inst, c.err = s.build(ctx, reg)
	})
	return c.inst, c.err
}

// owned builds the instance in a dedicated child scope released with s.
func (s *Scope) owned(ctx context.Context, reg *registration) (any, error) {
	owner, err := s.Child("")
	if err != nil {
		return nil, err
	}
	inst, err := owner.build(ctx, reg)
	if err != nil {
		return nil, errors.Join(err, owner.Close())
	}
	s.track(owner)
	return inst, nil
}

// build calls the factory, then applies the interception proxy and the decorators.
func (s *Scope) build(ctx context.Context, reg *registration) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = fmt.Errorf("%w: %s: %v", ErrFactoryPanic, typeName(reg.Implementation), r)
		}
	}()

	inst, err = reg.Factory(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", typeName(reg.Implementation), err)
	}
	if closer, ok := inst.(io.Closer); ok {
		s.track(closer)
	}

	if reg.proxy != nil {
		inst, err = reg.proxy(inst, reg.interceptors)
		if err != nil {
			return nil, fmt.Errorf("intercept %s: %w", typeName(reg.Implementation), err)
		}
	}
	for _, d := range reg.decorators {
		inst = d.Decorate(inst)
	}
	return inst, nil
}

func (s *Scope) track(closer io.Closer) {
	s.mu.Lock()
	s.disposables = append(s.disposables, closer)
	s.mu.Unlock()
}

type pathKey struct{}

func resolutionPath(ctx context.Context) []reflect.Type {
	path, _ := ctx.Value(pathKey{}).([]reflect.Type)
	return path
}

func withResolutionPath(ctx context.Context, path []reflect.Type) context.Context {
	return context.WithValue(ctx, pathKey{}, path)
}

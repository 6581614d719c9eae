package cqrs_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/io-da/cqrs"
	"github.com/io-da/cqrs/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestDispatchCommand_Success(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := newContainer(t, nil, createUserType(rec))
	cd := commandDispatcher(t, c.Root())

	res := cqrs.DispatchCommand(context.Background(), cd, createUser{Name: "ana"})
	require.True(t, res.Succeeded())
	assert.NoError(t, res.Err())
	assert.Equal(t, []string{"handler"}, rec.Calls())
}

func TestDispatchQueryWithResult_Success(t *testing.T) {
	t.Parallel()

	c := newContainer(t, nil, getUserType())
	qd := queryDispatcher(t, c.Root())

	res := cqrs.DispatchQueryWithResult[getUser, string](context.Background(), qd, getUser{ID: 7})
	data, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, "user-7", data)
}

func TestDispatch_HandlerFailureIsPassedThrough(t *testing.T) {
	t.Parallel()

	var handled []error
	rec := &recorder{}
	c := newContainer(t, func(cfg *cqrs.Config) {
		cfg.ErrorHandlers = []cqrs.ErrorHandler{cqrs.ErrorHandlerFunc(func(_ context.Context, _ cqrs.Contract, err error) {
			handled = append(handled, err)
		})}
	}, createUserType(rec))
	cd := commandDispatcher(t, c.Root())

	res := cqrs.DispatchCommand(context.Background(), cd, createUser{Name: "taken"})
	require.True(t, res.Failed())
	assert.Same(t, errBusiness, res.Err())

	var dispatchErr *cqrs.DispatchError
	assert.False(t, errors.As(res.Err(), &dispatchErr))
	assert.Empty(t, handled, "handler failures are results, not recovered errors")
}

func TestDispatch_NoHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var handled []cqrs.Contract
	c := newContainer(t, func(cfg *cqrs.Config) {
		cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
		cfg.ErrorHandlers = []cqrs.ErrorHandler{cqrs.ErrorHandlerFunc(func(_ context.Context, contract cqrs.Contract, _ error) {
			handled = append(handled, contract)
		})}
	})
	qd := queryDispatcher(t, c.Root())

	var res cqrs.Result[cqrs.Void]
	require.NotPanics(t, func() {
		res = cqrs.DispatchQuery(context.Background(), qd, unhandled{})
	})
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err(), container.ErrNotRegistered)

	var dispatchErr *cqrs.DispatchError
	require.ErrorAs(t, res.Err(), &dispatchErr)
	assert.Equal(t, cqrs.ResolutionFailure, dispatchErr.Kind)
	assert.Equal(t, cqrs.CategoryQuery, dispatchErr.Category)
	assert.Equal(t, cqrs.Identifier("unhandled"), dispatchErr.Identifier)
	assert.Equal(t, "cqrs_test.unhandled", dispatchErr.Contract)

	assert.Contains(t, buf.String(), "exception while dispatching a query")
	assert.Contains(t, buf.String(), "kind=resolution")
	assert.Equal(t, []cqrs.Contract{unhandled{}}, handled)
}

func TestDispatch_HandlerPanic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := newContainer(t, func(cfg *cqrs.Config) {
		cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
		cfg.Scopes.CreateForCommands = true
	}, explodeType())
	cd := commandDispatcher(t, c.Root())

	var res cqrs.Result[cqrs.Void]
	require.NotPanics(t, func() {
		res = cqrs.DispatchCommand(context.Background(), cd, explode{})
	})
	require.True(t, res.Failed())

	var dispatchErr *cqrs.DispatchError
	require.ErrorAs(t, res.Err(), &dispatchErr)
	assert.Equal(t, cqrs.HandlerExecutionFailure, dispatchErr.Kind)
	assert.Equal(t, "boom", dispatchErr.Panic)
	assert.NotEmpty(t, dispatchErr.Stack)

	var panicErr cqrs.PanicError
	require.ErrorAs(t, res.Err(), &panicErr)
	assert.Equal(t, "panic: boom", panicErr.Error())

	assert.Contains(t, buf.String(), "exception while dispatching a command")
	assert.Zero(t, c.ActiveScopes(), "the scope created for the call must be released")
}

func TestDispatch_ConcurrentQueriesUseDistinctScopes(t *testing.T) {
	t.Parallel()

	c := newContainer(t, func(cfg *cqrs.Config) {
		cfg.Scopes.CreateForQueries = true
	}, whoAmIType())
	request, err := c.Root().Child("request")
	require.NoError(t, err)
	defer request.Close()
	qd := queryDispatcher(t, request)

	markers := make([]*marker, 2)
	start := make(chan struct{})
	var g errgroup.Group
	for i := range markers {
		g.Go(func() error {
			<-start
			res := cqrs.DispatchQueryWithResult[whoAmI, *marker](context.Background(), qd, whoAmI{})
			markers[i] = res.Data()
			return res.Err()
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	require.NotNil(t, markers[0])
	require.NotNil(t, markers[1])
	assert.NotSame(t, markers[0], markers[1])
	assert.Equal(t, 1, c.ActiveScopes(), "only the request scope is left open")
}

func TestDispatch_ReusesAmbientScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newContainer(t, func(cfg *cqrs.Config) {
		cfg.Scopes = cqrs.ScopePolicy{}
	}, whoAmIType())

	ambient, err := cqrs.Resolve[*marker](ctx, c.Root())
	require.NoError(t, err)
	qd := queryDispatcher(t, c.Root())

	res := cqrs.DispatchQueryWithResult[whoAmI, *marker](ctx, qd, whoAmI{})
	require.NoError(t, res.Err())
	assert.Same(t, ambient, res.Data())
}

func TestDispatch_CreatesScopeFromRootByDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newContainer(t, nil, whoAmIType())

	rootMarker, err := cqrs.Resolve[*marker](ctx, c.Root())
	require.NoError(t, err)
	res := cqrs.DispatchQueryWithResult[whoAmI, *marker](ctx, queryDispatcher(t, c.Root()), whoAmI{})
	require.NoError(t, res.Err())
	assert.NotSame(t, rootMarker, res.Data())

	request, err := c.Root().Child("request")
	require.NoError(t, err)
	defer request.Close()
	requestMarker, err := cqrs.Resolve[*marker](ctx, request)
	require.NoError(t, err)
	res = cqrs.DispatchQueryWithResult[whoAmI, *marker](ctx, queryDispatcher(t, request), whoAmI{})
	require.NoError(t, res.Err())
	assert.Same(t, requestMarker, res.Data())
}

func TestDispatch_ExplicitScopeWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newContainer(t, func(cfg *cqrs.Config) {
		cfg.Scopes.CreateForCommands = true
	}, stampType())
	cd := commandDispatcher(t, c.Root())

	explicit, err := c.Root().Child("explicit")
	require.NoError(t, err)
	defer explicit.Close()
	expected, err := cqrs.Resolve[*marker](ctx, explicit)
	require.NoError(t, err)

	res := cqrs.DispatchCommandWithResultInScope[stamp, *marker](ctx, cd, explicit, stamp{})
	require.NoError(t, res.Err())
	assert.Same(t, expected, res.Data())
	assert.False(t, explicit.Closed(), "an explicit scope belongs to the caller")

	res = cqrs.DispatchCommandWithResult[stamp, *marker](ctx, cd, stamp{})
	require.NoError(t, res.Err())
	assert.NotSame(t, expected, res.Data())
}

func TestDispatch_DualShapesAreIndependent(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := newContainer(t, nil, createUserType(rec,
		cqrs.CommandShape[createUser](),
		cqrs.CommandResultShape[createUser, string](),
	))
	cd := commandDispatcher(t, c.Root())
	ctx := context.Background()

	require.NoError(t, cqrs.DispatchCommand(ctx, cd, createUser{Name: "ana"}).Err())
	res := cqrs.DispatchCommandWithResult[createUser, string](ctx, cd, createUser{Name: "ana"})
	require.NoError(t, res.Err())
	assert.Equal(t, "user:ana", res.Data())
	assert.Equal(t, []string{"handler", "handler with result"}, rec.Calls())

	// no handler produces an int for createUser
	wrong := cqrs.DispatchCommandWithResult[createUser, int](ctx, cd, createUser{Name: "ana"})
	assert.ErrorIs(t, wrong.Err(), container.ErrNotRegistered)
}

func TestDispatch_ForwardsContext(t *testing.T) {
	t.Parallel()

	c := newContainer(t, nil, getUserType())
	qd := queryDispatcher(t, c.Root())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := cqrs.DispatchQueryWithResult[getUser, string](ctx, qd, getUser{ID: 1})
	assert.ErrorIs(t, res.Err(), context.Canceled)
	assert.Zero(t, c.ActiveScopes())
}

func TestDispatch_InScope(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := newContainer(t, nil, createUserType(rec), getUserType())
	ctx := context.Background()
	cd := commandDispatcher(t, c.Root())
	qd := queryDispatcher(t, c.Root())

	require.NoError(t, cqrs.DispatchCommandInScope(ctx, cd, c.Root(), createUser{Name: "ana"}).Err())
	res := cqrs.DispatchQueryWithResultInScope[getUser, string](ctx, qd, c.Root(), getUser{ID: 2})
	require.NoError(t, res.Err())
	assert.Equal(t, "user-2", res.Data())

	failed := cqrs.DispatchQueryInScope(ctx, qd, c.Root(), unhandled{})
	assert.ErrorIs(t, failed.Err(), container.ErrNotRegistered)
}

func TestDispatch_NilDispatcherAndScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var cd *cqrs.CommandDispatcher
	res := cqrs.DispatchCommand(ctx, cd, createUser{})
	assert.ErrorIs(t, res.Err(), cqrs.ErrNilDispatcher)

	var qd *cqrs.QueryDispatcher
	assert.ErrorIs(t, cqrs.DispatchQuery(ctx, qd, unhandled{}).Err(), cqrs.ErrNilDispatcher)

	cd = cqrs.NewCommandDispatcher(nil, nil)
	res = cqrs.DispatchCommand(ctx, cd, createUser{})
	assert.ErrorIs(t, res.Err(), cqrs.ErrNilScope)

	var dispatchErr *cqrs.DispatchError
	require.ErrorAs(t, res.Err(), &dispatchErr)
	assert.Equal(t, cqrs.ScopeFailure, dispatchErr.Kind)

	c := newContainer(t, nil)
	cd = commandDispatcher(t, c.Root())
	res = cqrs.DispatchCommandInScope(ctx, cd, nil, createUser{})
	assert.ErrorIs(t, res.Err(), cqrs.ErrNilScope)
}

func TestDispatch_ScopeFailure(t *testing.T) {
	t.Parallel()

	c := newContainer(t, nil, getUserType())
	request, err := c.Root().Child("request")
	require.NoError(t, err)
	qd := cqrs.NewQueryDispatcher(request, &cqrs.Config{Scopes: cqrs.ScopePolicy{CreateForQueries: true}})
	require.NoError(t, request.Close())

	res := cqrs.DispatchQueryWithResult[getUser, string](context.Background(), qd, getUser{})
	assert.ErrorIs(t, res.Err(), container.ErrScopeClosed)

	var dispatchErr *cqrs.DispatchError
	require.ErrorAs(t, res.Err(), &dispatchErr)
	assert.Equal(t, cqrs.ScopeFailure, dispatchErr.Kind)
}

type closeCounter struct {
	mu     sync.Mutex
	closed int
}

func (cc *closeCounter) Close() error {
	cc.mu.Lock()
	cc.closed++
	cc.mu.Unlock()
	return nil
}

func TestDispatch_ReleasesCreatedScopeOnce(t *testing.T) {
	t.Parallel()

	cc := &closeCounter{}
	c := newContainer(t, func(cfg *cqrs.Config) {
		cfg.Scopes.CreateForCommands = true
	}, cqrs.NewHandlerType(func(context.Context, cqrs.Scope) (*closingExplodeHandler, error) {
		return &closingExplodeHandler{closeCounter: cc}, nil
	}, cqrs.CommandShape[explode]()))
	cd := commandDispatcher(t, c.Root())

	res := cqrs.DispatchCommand(context.Background(), cd, explode{})
	require.True(t, res.Failed())
	assert.Equal(t, 1, cc.closed)
	assert.Zero(t, c.ActiveScopes())
}

// closingExplodeHandler is released with the scope it was resolved in.
type closingExplodeHandler struct {
	*closeCounter
}

func (*closingExplodeHandler) HandleCommand(context.Context, explode) cqrs.Result[cqrs.Void] {
	panic(errors.New("boom"))
}

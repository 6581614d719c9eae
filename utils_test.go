package cqrs_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/io-da/cqrs"
	"github.com/io-da/cqrs/container"
	"github.com/stretchr/testify/require"
)

var errBusiness = errors.New("user already exists")

//------Contracts------//

type createUser struct {
	Name string
}

func (createUser) Identifier() cqrs.Identifier {
	return "create-user"
}

type stamp struct{}

func (stamp) Identifier() cqrs.Identifier {
	return "stamp"
}

type explode struct{}

func (explode) Identifier() cqrs.Identifier {
	return "explode"
}

type getUser struct {
	ID int
}

func (getUser) Identifier() cqrs.Identifier {
	return "get-user"
}

type whoAmI struct{}

func (whoAmI) Identifier() cqrs.Identifier {
	return "who-am-i"
}

type unhandled struct{}

func (unhandled) Identifier() cqrs.Identifier {
	return "unhandled"
}

//------Services------//

// marker is registered per scope, so two markers are the same instance
// exactly when they were resolved from the same scope.
type marker struct {
	id uuid.UUID
}

type recorder struct {
	sync.Mutex
	calls []string
}

func (r *recorder) record(call string) {
	r.Lock()
	r.calls = append(r.calls, call)
	r.Unlock()
}

func (r *recorder) Calls() []string {
	r.Lock()
	defer r.Unlock()
	return append([]string(nil), r.calls...)
}

//------Handlers------//

// createUserHandler implements both command shapes of createUser.
type createUserHandler struct {
	rec *recorder
}

func (hdl *createUserHandler) HandleCommand(_ context.Context, cmd createUser) cqrs.Result[cqrs.Void] {
	hdl.rec.record("handler")
	if cmd.Name == "taken" {
		return cqrs.Fail[cqrs.Void](errBusiness)
	}
	return cqrs.OkVoid()
}

func (hdl *createUserHandler) HandleCommandWithResult(_ context.Context, cmd createUser) cqrs.Result[string] {
	hdl.rec.record("handler with result")
	return cqrs.Ok("user:" + cmd.Name)
}

type stampHandler struct {
	marker *marker
}

func (hdl *stampHandler) HandleCommandWithResult(context.Context, stamp) cqrs.Result[*marker] {
	return cqrs.Ok(hdl.marker)
}

type explodeHandler struct{}

func (*explodeHandler) HandleCommand(context.Context, explode) cqrs.Result[cqrs.Void] {
	panic("boom")
}

type getUserHandler struct {
	prefix string
}

func (hdl *getUserHandler) HandleQueryWithResult(ctx context.Context, qry getUser) cqrs.Result[string] {
	if err := ctx.Err(); err != nil {
		return cqrs.Fail[string](err)
	}
	return cqrs.Ok(hdl.prefix + strconv.Itoa(qry.ID))
}

type whoAmIHandler struct {
	marker *marker
}

func (hdl *whoAmIHandler) HandleQueryWithResult(context.Context, whoAmI) cqrs.Result[*marker] {
	return cqrs.Ok(hdl.marker)
}

//------Handler types------//

func createUserType(rec *recorder, shapes ...cqrs.Shape) *cqrs.HandlerType {
	if len(shapes) == 0 {
		shapes = []cqrs.Shape{cqrs.CommandShape[createUser]()}
	}
	return cqrs.NewHandlerType(func(context.Context, cqrs.Scope) (*createUserHandler, error) {
		return &createUserHandler{rec: rec}, nil
	}, shapes...)
}

func stampType() *cqrs.HandlerType {
	return cqrs.NewHandlerType(func(ctx context.Context, scope cqrs.Scope) (*stampHandler, error) {
		m, err := cqrs.Resolve[*marker](ctx, scope)
		if err != nil {
			return nil, err
		}
		return &stampHandler{marker: m}, nil
	}, cqrs.CommandResultShape[stamp, *marker]())
}

func explodeType() *cqrs.HandlerType {
	return cqrs.NewHandlerType(func(context.Context, cqrs.Scope) (*explodeHandler, error) {
		return &explodeHandler{}, nil
	}, cqrs.CommandShape[explode]())
}

func getUserType() *cqrs.HandlerType {
	return cqrs.NewHandlerType(func(context.Context, cqrs.Scope) (*getUserHandler, error) {
		return &getUserHandler{prefix: "user-"}, nil
	}, cqrs.QueryResultShape[getUser, string]())
}

func whoAmIType() *cqrs.HandlerType {
	return cqrs.NewHandlerType(func(ctx context.Context, scope cqrs.Scope) (*whoAmIHandler, error) {
		m, err := cqrs.Resolve[*marker](ctx, scope)
		if err != nil {
			return nil, err
		}
		return &whoAmIHandler{marker: m}, nil
	}, cqrs.QueryResultShape[whoAmI, *marker]())
}

//------General------//

// newContainer registers the marker service and the given handler types.
func newContainer(t *testing.T, configure func(*cqrs.Config), types ...*cqrs.HandlerType) *container.Container {
	t.Helper()
	c := container.New(container.WithMatchingScopes(), container.WithOwnedInstances())
	require.NoError(t, container.Provide(c, cqrs.PerScope, func(context.Context, cqrs.Scope) (*marker, error) {
		return &marker{id: uuid.New()}, nil
	}))
	require.NoError(t, cqrs.Register(c, configure, types...))
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func commandDispatcher(t *testing.T, scope cqrs.Scope) *cqrs.CommandDispatcher {
	t.Helper()
	cd, err := cqrs.CommandDispatcherFrom(context.Background(), scope)
	require.NoError(t, err)
	return cd
}

func queryDispatcher(t *testing.T, scope cqrs.Scope) *cqrs.QueryDispatcher {
	t.Helper()
	qd, err := cqrs.QueryDispatcherFrom(context.Background(), scope)
	require.NoError(t, err)
	return qd
}

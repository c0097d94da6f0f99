package csrf

import (
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockContextWithSession(method, sessionID string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Method").Return(method)
	ctx.On("IP").Return("127.0.0.1")
	if sessionID != "" {
		ctx.LocalsMock["session_id"] = sessionID
	} else {
		ctx.On("Locals", "session_id").Return(nil).Maybe()
	}
	ctx.On("Locals", DefaultContextKey, mock.Anything).Return(nil)
	ctx.On("Locals", DefaultContextKey+"_field", mock.Anything).Return(nil)
	ctx.On("Locals", DefaultContextKey+"_header", mock.Anything).Return(nil)
	ctx.On("LocalsMerge", mock.Anything, mock.Anything).Return(map[string]any{}).Maybe()
	return ctx
}

func TestSessionTokenValidationSuccess(t *testing.T) {
	guard := NewGuard()
	cfg := Config{
		Guard: guard,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithSession("GET", "sess-1")
	require.NoError(t, handler(getCtx))

	tokenVal, ok := getCtx.LocalsMock[DefaultContextKey].(string)
	require.True(t, ok)
	require.NotEmpty(t, tokenVal)

	postCtx := newMockContextWithSession("POST", "sess-1")
	postCtx.On("FormValue", DefaultFormFieldName).Return(tokenVal)

	require.NoError(t, handler(postCtx))
	require.True(t, postCtx.NextCalled)
}

func TestSessionTokenValidationMismatch(t *testing.T) {
	var captured error
	cfg := Config{
		Guard: NewGuard(),
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithSession("GET", "sess-1")
	require.NoError(t, handler(getCtx))

	postCtx := newMockContextWithSession("POST", "sess-1")
	postCtx.On("FormValue", DefaultFormFieldName).Return("tampered")

	err := handler(postCtx)
	require.Error(t, err)
	require.ErrorIs(t, captured, ErrTokenMismatch)
}

func TestSessionTokenIsScopedToSession(t *testing.T) {
	var captured error
	cfg := Config{
		Guard: NewGuard(),
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithSession("GET", "sess-1")
	require.NoError(t, handler(getCtx))
	tokenVal := getCtx.LocalsMock[DefaultContextKey].(string)

	// the same token presented from another session must fail
	postCtx := newMockContextWithSession("POST", "sess-2")
	postCtx.On("FormValue", DefaultFormFieldName).Return(tokenVal)

	err := handler(postCtx)
	require.Error(t, err)
	require.ErrorIs(t, captured, ErrTokenMismatch)
}

func TestMissingTokenRejected(t *testing.T) {
	var captured error
	cfg := Config{
		Guard: NewGuard(),
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithSession("GET", "sess-1")
	require.NoError(t, handler(getCtx))

	postCtx := newMockContextWithSession("POST", "sess-1")
	postCtx.On("FormValue", DefaultFormFieldName).Return("")
	postCtx.On("GetString", DefaultHeaderName, "").Return("")

	err := handler(postCtx)
	require.Error(t, err)
	require.ErrorIs(t, captured, ErrTokenMissing)
}

func TestAnonymousRequestsFallBackToIPScope(t *testing.T) {
	cfg := Config{
		Guard: NewGuard(),
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithSession("GET", "")
	require.NoError(t, handler(getCtx))

	tokenVal, ok := getCtx.LocalsMock[DefaultContextKey].(string)
	require.True(t, ok)
	require.NotEmpty(t, tokenVal)

	postCtx := newMockContextWithSession("POST", "")
	postCtx.On("FormValue", DefaultFormFieldName).Return(tokenVal)

	require.NoError(t, handler(postCtx))
}

func TestHeaderTokenAccepted(t *testing.T) {
	cfg := Config{
		Guard: NewGuard(),
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithSession("GET", "sess-1")
	require.NoError(t, handler(getCtx))
	tokenVal := getCtx.LocalsMock[DefaultContextKey].(string)

	postCtx := newMockContextWithSession("POST", "sess-1")
	postCtx.On("FormValue", DefaultFormFieldName).Return("")
	postCtx.On("GetString", DefaultHeaderName, "").Return(tokenVal)

	require.NoError(t, handler(postCtx))
}

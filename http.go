package auth

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const (
	// SessionContextKey is the context local carrying the resolved session.
	SessionContextKey = "session"
	// SessionIDContextKey is the context local carrying the session id.
	SessionIDContextKey = "session_id"
	// PrincipalContextKey is the context local carrying the acting principal.
	PrincipalContextKey = "principal"
)

// SessionTransport moves sessions across HTTP: it writes and clears the
// cookie, resolves incoming requests to a live session, and funnels
// authentication failures to the login redirect.
type SessionTransport struct {
	sessions         *SessionManager
	tokens           *SessionTokenService
	cfg              Config
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

// NewSessionTransport wires a transport from the manager and config.
func NewSessionTransport(sessions *SessionManager, cfg Config) (*SessionTransport, error) {
	if sessions == nil {
		return nil, goerrors.New("session transport requires a session manager", goerrors.CategoryBadInput)
	}

	cookieDuration := cfg.GetSessionTTL()
	if cookieDuration <= 0 {
		cookieDuration = DefaultSessionTTL
	}

	t := &SessionTransport{
		sessions: sessions,
		cfg:      cfg,
		tokens: NewSessionTokenService(
			[]byte(cfg.GetSigningKey()),
			cookieDuration,
			cfg.GetIssuer(),
			cfg.GetAudience(),
			defLogger{},
		),
		cookieDuration: cookieDuration,
		Logger:         defLogger{},
	}

	t.ErrorHandler = t.defaultErrHandler
	t.AuthErrorHandler = t.defaultAuthErrHandler

	return t, nil
}

// WithLogger overrides the transport logger.
func (t *SessionTransport) WithLogger(logger Logger) *SessionTransport {
	if logger != nil {
		t.Logger = logger
	}
	return t
}

// Sessions exposes the underlying manager for controllers.
func (t *SessionTransport) Sessions() *SessionManager {
	return t.sessions
}

// Login creates a session for the principal and sets the cookie.
func (t *SessionTransport) Login(ctx router.Context, principal PrincipalRef) (*Session, error) {
	session, err := t.sessions.Login(ctx.Context(), principal)
	if err != nil {
		t.Logger.Error("Login error: %s", err)
		return nil, err
	}

	cookieValue, err := t.tokens.Mint(session)
	if err != nil {
		return nil, err
	}

	t.setCookieToken(ctx, cookieValue, t.cookieDuration)
	return session, nil
}

// Logout destroys the session and clears the cookie. Missing or garbage
// cookies still clear cleanly; logout cannot fail from the user's side.
func (t *SessionTransport) Logout(ctx router.Context) {
	if sessionID, err := t.sessionIDFromRequest(ctx); err == nil {
		if err := t.sessions.Logout(ctx.Context(), sessionID); err != nil {
			t.Logger.Warn("logout error: %v", err)
		}
	}

	t.cookieDel(ctx, t.cfg.GetCookieName())
}

// CurrentSession resolves the request's cookie into a live session.
func (t *SessionTransport) CurrentSession(ctx router.Context) (*Session, error) {
	sessionID, err := t.sessionIDFromRequest(ctx)
	if err != nil {
		return nil, err
	}

	return t.sessions.Current(ctx.Context(), sessionID)
}

// Protected resolves the session and stores it in the request context;
// requests without a live session get redirected to login.
func (t *SessionTransport) Protected() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, err := t.CurrentSession(ctx)
			if err != nil {
				return t.AuthErrorHandler(ctx, err)
			}

			ctx.Locals(SessionContextKey, session)
			ctx.Locals(SessionIDContextKey, session.ID)
			ctx.Locals(PrincipalContextKey, session.CurrentPrincipal())

			return ctx.Next()
		}
	}
}

// RequireRole gates a route on the acting principal's role. Impersonated
// requests are judged by the impersonated role, not the admin behind it.
func (t *SessionTransport) RequireRole(roles ...Role) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, ok := SessionFromContext(ctx)
			if !ok {
				return t.AuthErrorHandler(ctx, ErrNotAuthenticated)
			}

			role := session.CurrentPrincipal().Role
			for _, allowed := range roles {
				if role == allowed {
					return ctx.Next()
				}
			}

			return t.ErrorHandler(ctx, ErrForbidden)
		}
	}
}

// SessionFromContext returns the session stored by Protected.
func SessionFromContext(ctx router.Context) (*Session, bool) {
	raw := ctx.Locals(SessionContextKey)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(*Session)
	return session, ok && session != nil
}

// GetRedirect pops the rejected route cookie or falls back to def.
func (t *SessionTransport) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := t.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return t.cfg.GetRejectedRouteDefault()
	}
	t.cookieDel(ctx, rejectedRoute)
	return r
}

// SetRedirect remembers the rejected route so login can come back to it.
func (t *SessionTransport) SetRedirect(ctx router.Context) {
	rejectedRoute := t.cfg.GetRejectedRouteKey()

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (t *SessionTransport) sessionIDFromRequest(ctx router.Context) (string, error) {
	raw := ctx.Cookies(t.cfg.GetCookieName())
	return t.tokens.Parse(raw)
}

func (t *SessionTransport) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     t.cfg.GetCookieName(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (t *SessionTransport) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (t *SessionTransport) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "An unexpected authentication error").
			WithCode(goerrors.CodeUnauthorized)
	}

	t.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	t.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(t.cfg.GetLoginRoute(), statusCode)
}

func (t *SessionTransport) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	t.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return t.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

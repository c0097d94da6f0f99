package auth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

// RegisterPortalRoutes mounts the portal auth pages on app. The impersonate
// routes sit behind the transport's session middleware; redeeming a token
// requires being signed in as the admin who minted it.
func RegisterPortalRoutes[T any](app router.Router[T], opts ...PortalControllerOption) {
	controller := NewPortalController(opts...)
	protected := controller.Transport.Protected()

	app.
		Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.ForgotPassword, controller.ForgotPasswordShow).
		SetName("pwd-forgot.get")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("pwd-forgot.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetForm).
		SetName("pwd-reset-do.get")
	app.Post(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetExecute).
		SetName("pwd-reset-do.post")

	app.Get(controller.Routes.Impersonate, protected(controller.ImpersonateShow)).
		SetName("impersonate.get")
	app.Post(controller.Routes.Impersonate, protected(controller.ImpersonateCreate)).
		SetName("impersonate.post")
	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Impersonate), protected(controller.ImpersonateRedeem)).
		SetName("impersonate-redeem.get")
	app.Post(fmt.Sprintf("%s/end", controller.Routes.Impersonate), protected(controller.ImpersonateEnd)).
		SetName("impersonate-end.post")
}

type PortalControllerRoutes struct {
	Login          string
	Logout         string
	ForgotPassword string
	PasswordReset  string
	Impersonate    string
}

type PortalControllerViews struct {
	Login          string
	ForgotPassword string
	PasswordReset  string
	Impersonate    string
}

type PortalController struct {
	Debug          bool
	Logger         Logger
	Transport      *SessionTransport
	Provider       *UserProvider
	Resets         *PasswordResetService
	Impersonations *ImpersonationService
	Routes         *PortalControllerRoutes
	Views          *PortalControllerViews
	ErrorHandler   router.ErrorHandler
}

type PortalControllerOption func(*PortalController) *PortalController

// WithTransport sets the session transport.
func WithTransport(t *SessionTransport) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Transport = t
		return c
	}
}

// WithProvider sets the credential verifier.
func WithProvider(p *UserProvider) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Provider = p
		return c
	}
}

// WithResetService sets the password reset service.
func WithResetService(s *PasswordResetService) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Resets = s
		return c
	}
}

// WithImpersonationService sets the impersonation service.
func WithImpersonationService(s *ImpersonationService) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Impersonations = s
		return c
	}
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(l Logger) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func NewPortalController(opts ...PortalControllerOption) *PortalController {
	c := &PortalController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &PortalControllerRoutes{
			Login:          "/login",
			Logout:         "/logout",
			ForgotPassword: "/forgot-password",
			PasswordReset:  "/password-reset",
			Impersonate:    "/impersonate",
		},
		Views: &PortalControllerViews{
			Login:          "login",
			ForgotPassword: "forgot_password",
			PasswordReset:  "password_reset",
			Impersonate:    "impersonate",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Transport == nil {
		panic("Missing SessionTransport in portal controller...")
	}

	if c.Provider == nil {
		panic("Missing UserProvider in portal controller...")
	}

	if c.Resets == nil {
		panic("Missing PasswordResetService in portal controller...")
	}

	if c.Impersonations == nil {
		panic("Missing ImpersonationService in portal controller...")
	}

	return c
}

func (a *PortalController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *PortalController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errs := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("login attempt %s", print.MaybePrettyJSON(payload))
	}

	principal, err := a.Provider.VerifyIdentity(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		errs["authentication"] = "Invalid email or password"
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	if _, err := a.Transport.Login(ctx, principal); err != nil {
		errs["authentication"] = "Authentication Error"
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": errs,
			"record": payload,
		})
	}

	redirect := a.Transport.GetRedirect(ctx, "/")

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *PortalController) LogOut(ctx router.Context) error {
	a.Transport.Logout(ctx)
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (a *PortalController) ForgotPasswordShow(ctx router.Context) error {
	return ctx.Render(a.Views.ForgotPassword, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// ForgotPasswordPayload holds the reset request form
type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

// ForgotPasswordPost always renders the same confirmation, whether or not
// the email maps to an account. The asymmetry lives only in the logs.
func (a *PortalController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("forgot password parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.ForgotPassword, router.ViewContext{
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("forgot password validate payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.ForgotPassword, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if _, err := a.Resets.Issue(ctx.Context(), payload.Email); err != nil {
		if IsStoreUnavailable(err) {
			a.Logger.Error("forgot password issue error: %v", err)
			return a.ErrorHandler(ctx, err)
		}
		// unknown email gets the same response as success
		a.Logger.Info("forgot password for unknown email: %v", err)
	}

	return ctx.Render(a.Views.ForgotPassword, router.ViewContext{
		"sent":  true,
		"email": payload.Email,
	})
}

func (a *PortalController) PasswordResetForm(ctx router.Context) error {
	token := ctx.Param("token", "")

	if _, err := a.Resets.Validate(ctx.Context(), token); err != nil {
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"invalid": true,
			"errors": map[string]string{
				"token": ErrInvalidToken.Message,
			},
		})
	}

	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"token": token,
	})
}

// PasswordResetPayload holds the new credential form
type PasswordResetPayload struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(10, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *PortalController) PasswordResetExecute(ctx router.Context) error {
	token := ctx.Param("token", "")
	payload := new(PasswordResetPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"token": token,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"token":      token,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Resets.Consume(ctx.Context(), token, payload.Password); err != nil {
		return ctx.Render(a.Views.PasswordReset, router.ViewContext{
			"invalid": true,
			"errors": map[string]string{
				"token": ErrInvalidToken.Message,
			},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Your password has been updated, you can sign in now",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func (a *PortalController) ImpersonateShow(ctx router.Context) error {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return a.Transport.AuthErrorHandler(ctx, ErrNotAuthenticated)
	}

	if session.CurrentPrincipal().Role != RoleAdmin {
		return a.ErrorHandler(ctx, ErrForbidden)
	}

	return ctx.Render(a.Views.Impersonate, router.ViewContext{})
}

// ImpersonatePayload holds the target account for an impersonation link
type ImpersonatePayload struct {
	TargetID string `form:"target_id" json:"target_id"`
}

// Validate will validate the payload
func (r ImpersonatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.TargetID,
			validation.Required,
			is.UUIDv4,
		),
	)
}

func (a *PortalController) ImpersonateCreate(ctx router.Context) error {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return a.Transport.AuthErrorHandler(ctx, ErrNotAuthenticated)
	}

	payload := new(ImpersonatePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Impersonate, router.ViewContext{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	targetID, err := uuid.Parse(payload.TargetID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	token, err := a.Impersonations.Issue(ctx.Context(), session.CurrentPrincipal(), targetID)
	if err != nil {
		a.Logger.Error("impersonation issue error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.Impersonate, router.ViewContext{
		"link":    fmt.Sprintf("%s/%s", a.Routes.Impersonate, token.Token),
		"expires": token.ExpiresAt,
	})
}

func (a *PortalController) ImpersonateRedeem(ctx router.Context) error {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return a.Transport.AuthErrorHandler(ctx, ErrNotAuthenticated)
	}

	token := ctx.Param("token", "")

	grant, err := a.Impersonations.Redeem(ctx.Context(), token)
	if err != nil {
		a.Logger.Warn("impersonation redeem error: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  ErrInvalidToken.Message,
			"system_message": "Impersonation link rejected",
		}).Redirect("/", fiber.StatusSeeOther)
	}

	if _, err := a.Transport.Sessions().BeginImpersonation(ctx.Context(), session.ID, grant.Target); err != nil {
		a.Logger.Error("impersonation overlay error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": fmt.Sprintf("You are now browsing as %s", grant.Target.DisplayName),
	}).Redirect("/", fiber.StatusSeeOther)
}

func (a *PortalController) ImpersonateEnd(ctx router.Context) error {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return a.Transport.AuthErrorHandler(ctx, ErrNotAuthenticated)
	}

	if _, err := a.Transport.Sessions().EndImpersonation(ctx.Context(), session.ID); err != nil {
		a.Logger.Error("end impersonation error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Back to your own account",
	}).Redirect("/", fiber.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["form"] = err.Error()
	}

	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}

package auth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the login, logout, sign up and activation
// handlers on app.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.get")

	app.Get(controller.Routes.SignUp, controller.SignUpShow).
		SetName("sign-up.get")
	app.Post(controller.Routes.SignUp, controller.SignUpPost).
		SetName("sign-up.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Activate), controller.ActivateGet).
		SetName("activate.get")
}

type AuthControllerRoutes struct {
	Login    string
	Logout   string
	SignUp   string
	Activate string
	// AfterLogin is where a successful login redirects
	AfterLogin string
	// AfterLogout is where logout redirects
	AfterLogout string
}

type AuthControllerViews struct {
	Login    string
	SignUp   string
	Activate string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Auther       *Auther
	Sessions     SessionProvider
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerAuther sets the Auther serving the handlers
func WithControllerAuther(auther *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithControllerSessions sets the provider opening the request session
func WithControllerSessions(provider SessionProvider) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sessions = provider
		return c
	}
}

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerRoutes overrides the mounted paths
func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// WithControllerViews overrides the rendered templates
func WithControllerViews(views *AuthControllerViews) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if views != nil {
			c.Views = views
		}
		return c
	}
}

// WithControllerErrorHandler sets the handler for unexpected failures
func WithControllerErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// WithControllerDebug dumps login payloads to the logger
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:       "/login",
			Logout:      "/logout",
			SignUp:      "/signup",
			Activate:    "/activate",
			AfterLogin:  "/",
			AfterLogout: "/",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			SignUp:   "signup",
			Activate: "activate",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionProvider in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Auther.defaultErrHandler
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("login bind payload", "error", err)
		return ctx.Status(router.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Status(router.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": validationErrorMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("login payload: %s", print.MaybePrettyJSON(LoginRequest{
			Email:    payload.Email,
			Remember: payload.Remember,
		}))
	}

	sess, err := a.Sessions.Start(ctx.Context(), ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if _, err := a.Auther.Login(ctx.Context(), ctx, sess, payload.Email, payload.Password, payload.Remember); err != nil {
		if IsStorageError(err) {
			return a.ErrorHandler(ctx, err)
		}
		return ctx.Status(router.StatusUnauthorized).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"authentication": loginErrorMessage(err)},
			"record": LoginRequest{Email: payload.Email, Remember: payload.Remember},
		})
	}

	return ctx.Redirect(a.Routes.AfterLogin, router.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	sess, err := a.Sessions.Start(ctx.Context(), ctx)
	if err != nil {
		a.Logger.Error("logout start session", "error", err)
		sess = nil
	}

	if err := a.Auther.Logout(ctx.Context(), ctx, sess); err != nil {
		a.Logger.Error("logout", "error", err)
	}

	return ctx.Redirect(a.Routes.AfterLogout, router.StatusTemporaryRedirect)
}

func (a *AuthController) SignUpShow(ctx router.Context) error {
	return ctx.Render(a.Views.SignUp, router.ViewContext{
		"errors": map[string]string{},
		"record": SignUpRequest{},
	})
}

func (a *AuthController) SignUpPost(ctx router.Context) error {
	payload := new(SignUpRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign up parse payload", "error", err)
		return ctx.Status(router.StatusBadRequest).Render(a.Views.SignUp, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Status(router.StatusBadRequest).Render(a.Views.SignUp, router.ViewContext{
			"record":     SignUpRequest{Email: payload.Email, FirstName: payload.FirstName, LastName: payload.LastName},
			"validation": validationErrorMap(err),
		})
	}

	user, err := a.Auther.SignUp(ctx.Context(), payload.Email, payload.Password, payload.FirstName, payload.LastName)
	if err != nil {
		if !errors.Is(err, ErrDuplicateEmail) && !errors.Is(err, ErrInvalidSignUp) {
			return a.ErrorHandler(ctx, err)
		}
		return ctx.Status(router.StatusBadRequest).Render(a.Views.SignUp, router.ViewContext{
			"record": SignUpRequest{Email: payload.Email, FirstName: payload.FirstName, LastName: payload.LastName},
			"errors": map[string]string{"form": err.Error()},
		})
	}

	return ctx.Render(a.Views.Activate, router.ViewContext{
		"pending": true,
		"email":   user.Email,
	})
}

func (a *AuthController) ActivateGet(ctx router.Context) error {
	token := ctx.Param("token", "")

	if _, err := a.Auther.Activate(ctx.Context(), token); err != nil {
		if IsStorageError(err) {
			return a.ErrorHandler(ctx, err)
		}
		return ctx.Status(router.StatusBadRequest).Render(a.Views.Activate, router.ViewContext{
			"activated": false,
			"errors":    map[string]string{"token": err.Error()},
		})
	}

	return ctx.Render(a.Views.Activate, router.ViewContext{
		"activated": true,
		"login":     a.Routes.Login,
	})
}

// loginErrorMessage keeps credential failures generic while still telling
// the user when the account itself is the problem.
func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrAccountInactive):
		return "Account has not been activated"
	case errors.Is(err, ErrAccountSuspended):
		return "Account has been suspended"
	default:
		return "Authentication Error"
	}
}

func validationErrorMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		out["form"] = err.Error()
		return out
	}

	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}
	return out
}

package signup

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

const (
	titleSignup        = "Sign up"
	titleEmailSent     = "Sign up - Email sent"
	titleResend        = "Resend verification email"
	titleLinkExpired   = "Sign up - Email verification link expired"
	titleSignupSuccess = "Sign up success"
)

// RegisterSignupRoutes mounts the signup workflow on router. The token
// route is registered last so it never shadows the resend route.
func RegisterSignupRoutes(router fiber.Router, opts ...SignupControllerOption) *SignupController {
	controller := NewSignupController(opts...)

	router.Get(controller.Routes.Signup, controller.SignupShow).
		Name("signup.get")
	router.Post(controller.Routes.Signup, controller.SignupPost).
		Name("signup.post")

	router.Get(controller.Routes.Resend(), controller.ResendShow).
		Name("signup-resend.get")
	router.Post(controller.Routes.Resend(), controller.ResendPost).
		Name("signup-resend.post")

	router.Get(controller.Routes.Verify(), controller.VerifyShow).
		Name("signup-verify.get")

	return controller
}

type SignupControllerRoutes struct {
	Signup string
}

// Resend is the path of the resend verification form
func (r SignupControllerRoutes) Resend() string {
	return r.Signup + "/resend-verification"
}

// Verify is the path pattern of the verification link
func (r SignupControllerRoutes) Verify() string {
	return r.Signup + "/:token"
}

type SignupControllerViews struct {
	Signup      string
	SignedUp    string
	Resend      string
	LinkExpired string
	Verified    string
	Error       string
}

type SignupController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Mailer       Mailer
	Issuer       *TokenIssuer
	Hasher       PasswordHasher
	Activity     ActivitySink
	Policy       ErrorPolicy
	Clock        Clock
	UseHashid    bool
	Routes       *SignupControllerRoutes
	Views        *SignupControllerViews
	ErrorHandler func(*fiber.Ctx, error) error
}

type SignupControllerOption func(*SignupController) *SignupController

func NewSignupController(opts ...SignupControllerOption) *SignupController {
	c := &SignupController{
		Logger: defLogger{},
		Issuer: NewTokenIssuer(DefaultTokenExpiration),
		Hasher: BcryptHasher{},
		Routes: &SignupControllerRoutes{
			Signup: "/signup",
		},
		Views: &SignupControllerViews{
			Signup:      "signup",
			SignedUp:    "post_signup",
			Resend:      "resend_verification",
			LinkExpired: "link_expired",
			Verified:    "mail_verification_success",
			Error:       "error",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in signup controller...")
	}

	if c.Mailer == nil {
		panic("Missing Mailer in signup controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	c.Routes.Signup = "/" + strings.Trim(c.Routes.Signup, "/")

	return c
}

// WithSignupRepository sets the repository manager
func WithSignupRepository(repo RepositoryManager) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.Repo = repo
		return c
	}
}

// WithSignupMailer sets the mailer used for all notifications
func WithSignupMailer(mailer Mailer) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.Mailer = mailer
		return c
	}
}

// WithSignupTokenIssuer sets the token issuer, mainly to change the expiration
func WithSignupTokenIssuer(issuer *TokenIssuer) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		if issuer != nil {
			c.Issuer = issuer
		}
		return c
	}
}

func WithSignupPasswordHasher(hasher PasswordHasher) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		if hasher != nil {
			c.Hasher = hasher
		}
		return c
	}
}

func WithSignupActivitySink(sink ActivitySink) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.Activity = sink
		return c
	}
}

func WithSignupErrorPolicy(policy ErrorPolicy) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.Policy = policy
		return c
	}
}

func WithSignupClock(clock Clock) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.Clock = clock
		return c
	}
}

func WithSignupLogger(logger Logger) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithSignupRoute changes the mount point, "/signup" by default
func WithSignupRoute(route string) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		if route != "" {
			c.Routes.Signup = route
		}
		return c
	}
}

// WithSignupViews overrides view names, empty names keep the default
func WithSignupViews(views SignupControllerViews) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.Views = mergeViews(c.Views, views)
		return c
	}
}

func WithSignupHashid(enabled bool) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.UseHashid = enabled
		return c
	}
}

func WithSignupDebug(debug bool) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.Debug = debug
		return c
	}
}

func WithSignupErrorHandler(handler func(*fiber.Ctx, error) error) SignupControllerOption {
	return func(c *SignupController) *SignupController {
		c.ErrorHandler = handler
		return c
	}
}

func (a *SignupController) SignupShow(ctx *fiber.Ctx) error {
	return ctx.Render(a.Views.Signup, fiber.Map{
		"title": titleSignup,
	})
}

// SignupPayload is the signup form payload
type SignupPayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *SignupController) SignupPost(ctx *fiber.Ctx) error {
	payload := new(SignupPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Signup, fiber.Map{
			"title": titleSignup,
			"error": "Failed to parse form",
		})
	}

	if a.Debug {
		fmt.Println("======= SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(SignupPayload{
			Username: payload.Username,
			Email:    payload.Email,
		}))
		fmt.Println("=====================")
	}

	var res *SignupResponse
	req := SignupMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(resp *SignupResponse) {
			res = resp
		},
	}

	if err := a.signupHandler().Execute(ctx.UserContext(), req); err != nil {
		if IsRejection(err) {
			return ctx.Status(fiber.StatusForbidden).Render(a.Views.Signup, fiber.Map{
				"title":    titleSignup,
				"error":    RejectionMessage(err),
				"username": payload.Username,
				"email":    payload.Email,
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug && res != nil {
		a.Logger.Debug("signup finished with stage %s", res.Stage)
	}

	return ctx.Render(a.Views.SignedUp, fiber.Map{
		"title": titleEmailSent,
	})
}

func (a *SignupController) ResendShow(ctx *fiber.Ctx) error {
	return ctx.Render(a.Views.Resend, fiber.Map{
		"title": titleResend,
	})
}

// ResendPayload is the resend verification form payload
type ResendPayload struct {
	Email string `form:"email" json:"email"`
}

func (a *SignupController) ResendPost(ctx *fiber.Ctx) error {
	payload := new(ResendPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("resend verification parse payload: %v", err)
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Resend, fiber.Map{
			"title": titleResend,
			"error": "Failed to parse form",
		})
	}

	if a.Debug {
		fmt.Println("======= SIGNUP RESEND ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	req := ResendVerificationMessage{Email: payload.Email}

	if err := a.resendHandler().Execute(ctx.UserContext(), req); err != nil {
		if IsRejection(err) {
			return ctx.Status(fiber.StatusForbidden).Render(a.Views.Resend, fiber.Map{
				"title": titleResend,
				"error": RejectionMessage(err),
				"email": payload.Email,
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.SignedUp, fiber.Map{
		"title": titleEmailSent,
	})
}

// VerifyShow handles the link sent by email. Unknown and malformed
// tokens fall through to the next handler, usually the app's 404.
func (a *SignupController) VerifyShow(ctx *fiber.Ctx) error {
	var res *VerifyAccountResponse
	req := VerifyAccountMessage{
		Token: ctx.Params("token"),
		OnResponse: func(resp *VerifyAccountResponse) {
			res = resp
		},
	}

	if err := a.verifyHandler().Execute(ctx.UserContext(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= SIGNUP VERIFY ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("============================")
	}

	switch {
	case res == nil || res.NotFound:
		return ctx.Next()
	case res.Expired:
		return ctx.Render(a.Views.LinkExpired, fiber.Map{
			"title": titleLinkExpired,
		})
	default:
		return ctx.Render(a.Views.Verified, fiber.Map{
			"title": titleSignupSuccess,
		})
	}
}

func (a *SignupController) signupHandler() *SignupHandler {
	return NewSignupHandler(a.Repo, a.Mailer).
		WithTokenIssuer(a.Issuer).
		WithPasswordHasher(a.Hasher).
		WithActivitySink(a.Activity).
		WithErrorPolicy(a.Policy).
		WithLogger(a.Logger).
		WithClock(a.Clock).
		WithHashid(a.UseHashid)
}

func (a *SignupController) resendHandler() *ResendVerificationHandler {
	return NewResendVerificationHandler(a.Repo, a.Mailer).
		WithTokenIssuer(a.Issuer).
		WithActivitySink(a.Activity).
		WithErrorPolicy(a.Policy).
		WithLogger(a.Logger).
		WithClock(a.Clock)
}

func (a *SignupController) verifyHandler() *VerifyAccountHandler {
	return NewVerifyAccountHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithErrorPolicy(a.Policy).
		WithLogger(a.Logger).
		WithClock(a.Clock)
}

func (a *SignupController) defaultErrHandler(ctx *fiber.Ctx, err error) error {
	a.Logger.Error("signup request failed: %v", err)
	return ctx.Status(fiber.StatusInternalServerError).Render(a.Views.Error, fiber.Map{
		"title":   "Error",
		"message": "Something went wrong",
	})
}

func mergeViews(base *SignupControllerViews, override SignupControllerViews) *SignupControllerViews {
	out := *base
	if override.Signup != "" {
		out.Signup = override.Signup
	}
	if override.SignedUp != "" {
		out.SignedUp = override.SignedUp
	}
	if override.Resend != "" {
		out.Resend = override.Resend
	}
	if override.LinkExpired != "" {
		out.LinkExpired = override.LinkExpired
	}
	if override.Verified != "" {
		out.Verified = override.Verified
	}
	if override.Error != "" {
		out.Error = override.Error
	}
	return &out
}

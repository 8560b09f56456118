package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/activitymap"
	"github.com/goliatone/go-signup/config"
	"github.com/goliatone/go-signup/mail"
	"github.com/goliatone/go-signup/persistence"
	"github.com/uptrace/bun"
)

type App struct {
	config *config.Config
	logger *glog.BaseLogger
	db     *bun.DB
	repo   signup.RepositoryManager
	mailer signup.Mailer
	srv    *fiber.App
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("app"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	if cfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg))
		fmt.Println("============")
	}

	ctx := context.Background()

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}
	defer app.db.Close()

	if err := WithMailer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	go func() {
		if err := app.srv.Listen(cfg.Server.Address); err != nil {
			app.GetLogger("http").Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	if err := app.srv.ShutdownWithTimeout(cfg.Server.ShutdownTimeoutDuration()); err != nil {
		app.GetLogger("http").Error("shutdown error", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := persistence.Open(ctx, app.config.Persistence)
	if err != nil {
		return err
	}

	repo := signup.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		db.Close()
		return err
	}

	app.db = db
	app.repo = repo
	return nil
}

func WithMailer(_ context.Context, app *App) error {
	mailer, err := mail.New(app.config, app.GetLogger("mail"))
	if err != nil {
		return err
	}
	app.mailer = mailer
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	cfg := app.config

	srv := fiber.New(fiber.Config{
		AppName:               "signup",
		Views:                 signup.NewViewEngine(),
		DisableStartupMessage: !cfg.Debug,
	})

	logger := app.GetLogger("signup")

	policy := signup.BestEffortPolicy(logger)
	if cfg.Signup.StrictErrors {
		policy = signup.StrictPolicy(logger)
	}

	activity := activitymap.LogSink(app.GetLogger("activity"))

	signup.RegisterSignupRoutes(srv,
		signup.WithSignupRepository(app.repo),
		signup.WithSignupMailer(app.mailer),
		signup.WithSignupTokenIssuer(signup.NewTokenIssuer(cfg.Signup.TokenTTL())),
		signup.WithSignupErrorPolicy(policy),
		signup.WithSignupActivitySink(activity),
		signup.WithSignupLogger(logger),
		signup.WithSignupRoute(cfg.Signup.Route),
		signup.WithSignupViews(signup.SignupControllerViews{
			Signup:      cfg.Signup.Views.Signup,
			SignedUp:    cfg.Signup.Views.SignedUp,
			Resend:      cfg.Signup.Views.Resend,
			LinkExpired: cfg.Signup.Views.LinkExpired,
			Verified:    cfg.Signup.Views.Verified,
			Error:       cfg.Signup.Views.Error,
		}),
		signup.WithSignupHashid(cfg.Signup.UseHashid),
		signup.WithSignupDebug(cfg.Debug),
	)

	app.srv = srv
	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

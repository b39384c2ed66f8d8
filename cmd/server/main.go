package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/versifyhq/go-auth"
	"github.com/versifyhq/go-auth/activitymap"
	"github.com/versifyhq/go-auth/cmd/server/config"
	"github.com/versifyhq/go-auth/middleware/csrf"
	"github.com/versifyhq/go-auth/middleware/jwtware"
)

//go:embed data/fixtures/*.yml
var fixturesFS embed.FS

type App struct {
	config *gconfig.Container[*config.BaseConfig]
	bunDB  *bun.DB
	auth   auth.Authenticator
	auther auth.HTTPAuthenticator
	repo   auth.RepositoryManager
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) SetRepository(repo auth.RepositoryManager) {
	a.repo = repo
}

func (a *App) SetDB(db *bun.DB) {
	a.bunDB = db
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) SetHTTPServer(srv router.Server[*fiber.App]) {
	a.srv = srv
}

func (a *App) SetAuthenticator(auth auth.Authenticator) {
	a.auth = auth
}

func (a *App) SetHTTPAuth(auther auth.HTTPAuthenticator) {
	a.auther = auther
}

func main() {

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("versify"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(config.Default()).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if app.Config().GetApp().GetDebug() {
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPAuth(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(app.Config().GetServer().GetAddress())

	sig := WaitExitSignal()
	lgr.Info("shutting down", "signal", sig.String())
}

// userTrackerAdapter narrows the repository surface to the methods the user
// provider needs, dropping the variadic criteria from the lookup.
type userTrackerAdapter struct {
	users auth.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSucccessfulLogin(ctx context.Context, user *auth.User) error {
	return a.users.TrackSucccessfulLogin(ctx, user)
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()

	db, err := sql.Open(sqliteshim.ShimName, pcfg.GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*auth.User)(nil))

	client, err := persistence.New(pcfg, db, sqlitedialect.New())
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	if pcfg.GetSeed() {
		client.RegisterFixtures(fixturesFS).AddOptions(persistence.WithTrucateTables())
		if err := client.Seed(ctx); err != nil {
			return err
		}
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		fmt.Printf("report: %s\n", report.String())
	}

	repo := auth.NewRepositoryManager(client.DB())
	if err := repo.Validate(); err != nil {
		return err
	}

	app.SetDB(client.DB())
	app.SetRepository(repo)

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           app.Config().GetApp().GetName(),
			UnescapePath:      true,
			EnablePrintRoutes: app.Config().GetApp().GetDebug(),
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	srv.Router().Get("/healthz", func(c router.Context) error {
		return c.JSON(router.StatusOK, map[string]any{"status": "ok"})
	})

	app.SetHTTPServer(srv)

	return nil
}

func buildMailer(app *App) auth.Mailer {
	mcfg := app.Config().GetMailer()

	if mcfg.GetProvider() == "smtp" {
		mailer := auth.NewSMTPMailer(mcfg.GetHost(), mcfg.GetPort(), mcfg.GetFrom()).
			WithLogger(app.GetLogger("mailer"))
		if mcfg.GetUsername() != "" {
			mailer.WithCredentials(mcfg.GetUsername(), mcfg.GetPassword())
		}
		return mailer
	}

	return auth.NewLogMailer(app.GetLogger("mailer"))
}

func WithHTTPAuth(ctx context.Context, app *App) error {
	acfg := app.Config().GetAuth()

	if acfg.GetSigningKey() == "" {
		return errors.New("auth signing key is not configured", errors.CategoryOperation)
	}

	userProvider := auth.NewUserProvider(userTrackerAdapter{users: app.repo.Users()})
	userProvider.WithLogger(app.GetLogger("auth:prv"))

	activityLogger := app.GetLogger("activity")
	activity := auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		entry := activitymap.Normalize(event)
		activityLogger.Info("auth activity",
			"actor_id", entry.ActorID,
			"verb", entry.Verb,
			"object_type", entry.ObjectType,
			"object_id", entry.ObjectID,
			"channel", entry.Channel,
		)
		return nil
	})

	authenticator := auth.NewAuthenticator(userProvider, acfg)
	authenticator.WithLogger(app.GetLogger("auth:authz"))
	authenticator.WithActivitySink(activity)

	// Tokens signed with a retired key stay valid until they expire, so a
	// key rotation never logs everyone out at once.
	var rotation auth.TokenValidator
	if retired := acfg.GetRetiredSigningKeys(); len(retired) > 0 {
		validators := []auth.TokenValidator{authenticator.TokenService()}
		for _, key := range retired {
			validators = append(validators, auth.NewTokenService(
				[]byte(key),
				acfg.GetTokenExpiration(),
				acfg.GetIssuer(),
				acfg.GetAudience(),
				app.GetLogger("auth:tokens"),
			))
		}
		rotation = auth.NewMultiTokenValidator(validators...)
		authenticator.WithTokenValidator(rotation)
	}

	app.SetAuthenticator(authenticator)

	httpAuth, err := auth.NewHTTPAuthenticator(authenticator, acfg)
	if err != nil {
		return err
	}

	if rotation != nil {
		httpAuth.WithTokenValidator(rotation)
	}

	httpAuth.WithLogger(app.GetLogger("auth:http"))
	httpAuth.WithValidationListeners(func(c router.Context, claims jwtware.AuthClaims) error {
		app.GetLogger("auth:listener").Debug("validated token", "subject", claims.Subject())
		return nil
	})

	app.SetHTTPAuth(httpAuth)

	tokens := auth.NewPurposeTokenService([]byte(acfg.GetPurposeTokenSecret()))

	composer := auth.NewEmailComposer(app.Config().GetApp().GetBaseURL()).
		WithAppName(app.Config().GetApp().GetName())

	// CSRF only matters for requests the browser authenticates implicitly.
	// Bearer clients and first-contact requests without a session cookie
	// skip the check.
	csrfKey := sha256.Sum256([]byte(acfg.GetSigningKey()))
	app.srv.Router().Use(csrf.New(csrf.Config{
		SecureKey:      csrfKey[:],
		UserContextKey: acfg.GetContextKey(),
		Skip: func(c router.Context) bool {
			if c.GetString("Authorization", "") != "" {
				return true
			}
			return c.Cookies(acfg.GetContextKey(), "") == ""
		},
	}))
	csrf.RegisterRoutes(app.srv.Router().Group("/api/auth"))

	auth.RegisterAuthRoutes(app.srv.Router().Group("/"),
		func(ac *auth.AuthController) *auth.AuthController {
			ac.Debug = app.Config().GetApp().GetDebug()
			ac.Auther = httpAuth
			ac.Repo = app.repo
			ac.Config = acfg
			ac.Tokens = tokens
			ac.Mailer = buildMailer(app)
			ac.Composer = composer
			ac.Activity = activity
			ac.Logger = app.GetLogger("auth:ctrl")
			return ac
		})

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

package router

import (
	"context"
	"fmt"
	"net/http"

	authsvc "steward-backend/internal/application/auth"
	"steward-backend/internal/application/keeper"
	stewardsvc "steward-backend/internal/application/steward"
	"steward-backend/internal/config"
	"steward-backend/internal/infrastructure/database"
	"steward-backend/internal/infrastructure/payout"
	adminhandler "steward-backend/internal/interfaces/handlers/admin"
	authhandler "steward-backend/internal/interfaces/handlers/auth"
	healthhandler "steward-backend/internal/interfaces/handlers/health"
	stewardhandler "steward-backend/internal/interfaces/handlers/steward"
	"steward-backend/internal/middleware"
	"steward-backend/internal/observability/metrics"
	"steward-backend/internal/pkg/validation"
	engine "steward-backend/internal/steward"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services are the long-lived dependencies CreateApp wires, returned so the
// caller can run the keeper and close connections.
type Services struct {
	DB      *gorm.DB
	Rdb     *redis.Client
	Steward *stewardsvc.Service
	Keeper  *keeper.Keeper
}

func CreateApp(cfg *config.Config) (*fiber.App, *Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	m := metrics.Steward()

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	app.Use(middleware.Tracing())
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Metrics(m))
	app.Use(middleware.RouteLogger())

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	hh := &healthhandler.Handlers{
		Rdb:          rdb,
		AdminKeyHash: cfg.HealthAdminKeyHash,
	}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)

	ah := &authhandler.Handlers{
		Auth:   &authsvc.Service{Rdb: rdb, NonceTTL: cfg.LoginNonceTTL, Domain: cfg.LoginDomain},
		Rdb:    rdb,
		Config: sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Get("/nonce", ah.Nonce)
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	services := &Services{Rdb: rdb}
	if cfg.DatabaseURL == "" {
		return app, services, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	services.DB = db
	hh.DB = &database.Pinger{DB: db}

	svc, err := newStewardService(cfg, db, rdb, m)
	if err != nil {
		return nil, nil, err
	}
	services.Steward = svc
	hh.Steward = svc
	self, _ := validation.ParseAddress(cfg.StewardAddress)
	services.Keeper = &keeper.Keeper{Collector: svc, Interval: cfg.KeeperInterval, Identity: self}

	sh := &stewardhandler.Handlers{Service: svc}
	sg := app.Group("/api/v1/steward")
	sg.Get("/", sh.Snapshot)
	sg.Get("/patronage-owed", sh.PatronageOwed)
	sg.Get("/foreclosure-time", sh.ForeclosureTime)
	sg.Get("/patrons/:address", sh.Patron)
	sg.Get("/pull-funds/:address", sh.PullFunds)
	sg.Get("/events", sh.Events)
	sg.Post("/collect", sh.Collect)

	authed := sg.Group("", middleware.RequireAuth())
	authed.Post("/buy", sh.Buy)
	authed.Post("/change-price", sh.ChangePrice)
	authed.Post("/change-initial-price", sh.ChangeInitialPrice)
	authed.Post("/deposit", sh.Deposit)
	authed.Post("/withdraw-deposit", sh.WithdrawDeposit)
	authed.Post("/exit", sh.Exit)
	authed.Post("/withdraw-pull-funds", sh.WithdrawPullFunds)
	authed.Post("/roles/:role", sh.ChangeRole)

	adh := &adminhandler.Handlers{Rail: payout.New(db)}
	adg := app.Group("/api/v1/admin", middleware.RequireAdminKey(cfg.HealthAdminKeyHash))
	adg.Post("/recipients/:address/block", adh.BlockRecipient)
	adg.Post("/accounts/:address/fund", adh.FundAccount)
	adg.Get("/accounts/:address", adh.Account)

	return app, services, nil
}

func newStewardService(cfg *config.Config, db *gorm.DB, rdb *redis.Client, m *metrics.StewardMetrics) (*stewardsvc.Service, error) {
	rates, err := engine.DefaultRates(cfg.PatronagePct)
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewEngine(rates)
	if err != nil {
		return nil, err
	}
	svc := &stewardsvc.Service{
		DB:        db,
		Rdb:       rdb,
		Engine:    eng,
		TokenID:   cfg.TokenID,
		AutoSweep: cfg.PayoutAutoSweep,
		Metrics:   m,
	}
	// Validate has already checked every address.
	self, _ := validation.ParseAddress(cfg.StewardAddress)
	artist, _ := validation.ParseAddress(cfg.Artist)
	beneficiary, _ := validation.ParseAddress(cfg.Beneficiary)
	platform, _ := validation.ParseAddress(cfg.Platform)
	err = svc.Bootstrap(context.Background(), stewardsvc.Genesis{
		Self:         self,
		InitialPrice: cfg.InitialPrice(),
		Roles:        engine.Roles{Artist: artist, Beneficiary: beneficiary, Platform: platform},
		TokenURI:     cfg.TokenURI,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Handler adapts app to net/http for serverless hosts.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}

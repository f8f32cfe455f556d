package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "wapulse/docs"
	"wapulse/internal/config"
	"wapulse/internal/db"
	"wapulse/internal/handlers"
	"wapulse/internal/middleware"
	"wapulse/internal/pdf"
	"wapulse/internal/realtime"
	"wapulse/internal/repositories"
	"wapulse/internal/routes"
	"wapulse/internal/services"
	"wapulse/internal/utils"
	"wapulse/internal/workers"
)

const shutdownTimeout = 10 * time.Second

// App owns the HTTP server and the background workers.
type App struct {
	cfg        *config.Config
	db         *sqlx.DB
	redis      *redis.Client
	server     *http.Server
	dispatcher *workers.Dispatcher
	reaper     *workers.OTPReaper
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === DB ===
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
	} else {
		slog.Info("[app] redis url not set, rate limiting disabled")
	}

	// === Repos ===
	accountRepo := repositories.NewAccountRepository(conn)
	otpRepo := repositories.NewOTPRepository(conn)
	workspaceRepo := repositories.NewWorkspaceRepository(conn)
	roleRepo := repositories.NewRoleRepository(conn)
	planRepo := repositories.NewPlanRepository(conn)
	subscriptionRepo := repositories.NewSubscriptionRepository(conn)
	paymentRepo := repositories.NewPaymentRepository(conn)
	contactRepo := repositories.NewContactRepository(conn)
	templateRepo := repositories.NewTemplateRepository(conn)
	broadcastRepo := repositories.NewBroadcastRepository(conn)
	chatRepo := repositories.NewChatRepository(conn)

	// === Collaborators ===
	authService := services.NewAuthService(cfg.Auth.JWTSecret)
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	smsClient := utils.NewClientWithOptions(cfg.Mobizon.APIKey, cfg.Mobizon.SenderID, cfg.Mobizon.DryRun)
	ops := services.NewOpsNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	gateway := services.NewRazorpayGateway(cfg.Payments.KeyID, cfg.Payments.KeySecret, cfg.Payments.BaseURL, cfg.Payments.DryRun)
	invoices := pdf.NewInvoiceGenerator(cfg.Files.FontPath)
	waClient := services.NewWhatsAppClient(cfg.Meta.APIVersion, cfg.Meta.AppID, cfg.Meta.AppSecret)
	hub := realtime.NewHub()

	dispatcher := workers.NewDispatcher(workers.DispatcherStores{
		Broadcasts: broadcastRepo,
		Templates:  templateRepo,
		Contacts:   contactRepo,
		Workspaces: workspaceRepo,
		Chats:      chatRepo,
	}, waClient, cfg.Workers.BroadcastWorkers, cfg.Workers.BroadcastQueue)

	// === Services ===
	workspaceService := services.NewWorkspaceService(workspaceRepo, accountRepo, roleRepo, emailService)
	otpService := services.NewOTPService(accountRepo, otpRepo, workspaceService, authService, emailService, smsClient, ops)
	resetService := services.NewPasswordResetService(accountRepo, otpRepo, emailService, authService, cfg.Server.PublicBaseURL)
	accountService := services.NewAccountService(accountRepo, workspaceService, authService)
	roleService := services.NewRoleService(roleRepo)
	billingService := services.NewBillingService(planRepo, subscriptionRepo, paymentRepo, accountRepo, gateway, invoices, ops)
	contactService := services.NewContactService(contactRepo)
	templateService := services.NewTemplateService(templateRepo)
	broadcastService := services.NewBroadcastService(broadcastRepo, templateRepo, contactRepo, dispatcher)
	inboxService := services.NewInboxService(chatRepo, contactService, workspaceService, waClient, hub)
	connectService := services.NewWhatsAppConnectService(services.WhatsAppConnectConfig{
		AppID:       cfg.Meta.AppID,
		AppSecret:   cfg.Meta.AppSecret,
		RedirectURL: cfg.Meta.RedirectURL,
		ConfigID:    cfg.Meta.ConfigID,
		StateSecret: cfg.Meta.StateSecret,
	}, waClient, workspaceService)

	// === Gin ===
	if err := handlers.RegisterValidators(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register validators: %w", err)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, routes.Handlers{
		Auth:       handlers.NewAuthHandler(accountService, otpService, resetService, billingService),
		Workspaces: handlers.NewWorkspaceHandler(workspaceService),
		Roles:      handlers.NewRoleHandler(roleService),
		Billing:    handlers.NewBillingHandler(billingService),
		Contacts:   handlers.NewContactHandler(contactService),
		Templates:  handlers.NewTemplateHandler(templateService),
		Broadcasts: handlers.NewBroadcastHandler(broadcastService),
		Chats:      handlers.NewChatHandler(inboxService, hub),
		WhatsApp:   handlers.NewWhatsAppHandler(connectService, inboxService, cfg.Meta.AppSecret, cfg.Meta.VerifyToken, cfg.Meta.ReturnURL),
	}, routes.Guards{
		Tokens:        authService,
		Workspaces:    workspaceService,
		Roles:         roleService,
		Subscriptions: billingService,
		Redis:         rdb,
		RateLimit:     cfg.Redis,
	})

	return &App{
		cfg:   cfg,
		db:    conn,
		redis: rdb,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		dispatcher: dispatcher,
		reaper:     workers.NewOTPReaper(otpRepo, cfg.Workers.ReaperInterval),
	}, nil
}

// Run serves until ctx is cancelled, then drains the server and stops the
// workers.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("[app] http listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("[app] shutting down")
		return a.server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.reaper.Run(gctx) })

	return g.Wait()
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("[app] close redis", "err", err)
		}
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("[app] close db", "err", err)
	}
}

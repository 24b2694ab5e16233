package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/zaikon/internal/access"
	"github.com/dukerupert/zaikon/internal/account"
	"github.com/dukerupert/zaikon/internal/admin"
	"github.com/dukerupert/zaikon/internal/backup"
	"github.com/dukerupert/zaikon/internal/cleanup"
	"github.com/dukerupert/zaikon/internal/config"
	"github.com/dukerupert/zaikon/internal/email"
	"github.com/dukerupert/zaikon/internal/handler"
	"github.com/dukerupert/zaikon/internal/inventory"
	"github.com/dukerupert/zaikon/internal/line"
	"github.com/dukerupert/zaikon/internal/middleware"
	"github.com/dukerupert/zaikon/internal/notify"
	"github.com/dukerupert/zaikon/internal/purchase"
	"github.com/dukerupert/zaikon/internal/push"
	"github.com/dukerupert/zaikon/internal/store"
	ws "github.com/dukerupert/zaikon/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	checker     *access.Checker
	sessions    *middleware.Sessions
	issuer      *admin.Issuer
	dispatcher  *notify.Dispatcher
	scheduler   *cleanup.Scheduler
	rateLimiter *middleware.RateLimiter
	stop        chan struct{}

	authH     *handler.AuthHandler
	profileH  *handler.ProfileHandler
	locationH *handler.LocationHandler
	itemH     *handler.ItemHandler
	purchaseH *handler.PurchaseHandler
	pushH     *handler.PushHandler
	adminH    *handler.AdminHandler

	logger *slog.Logger
}

// Option overrides a default dependency. Used by tests.
type Option func(*deps)

type deps struct {
	emailOpts []email.Option
	lineOpts  []line.Option
}

func WithEmailOptions(opts ...email.Option) Option {
	return func(d *deps) { d.emailOpts = append(d.emailOpts, opts...) }
}

func WithLINEOptions(opts ...line.Option) Option {
	return func(d *deps) { d.lineOpts = append(d.lineOpts, opts...) }
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger, opts ...Option) *Server {
	var d deps
	for _, opt := range opts {
		opt(&d)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	banStore := store.NewBanStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)
	loginCodeStore := store.NewLoginCodeStore(db)
	locationStore := store.NewLocationStore(db)
	itemStore := store.NewItemStore(db)
	purchaseStore := store.NewPurchaseStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	emailClient := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, cfg.BaseURL, d.emailOpts...)
	lineClient := line.NewClient(cfg.LINE.ChannelAccessToken, cfg.LINE.ChannelSecret, d.lineOpts...)
	pushSvc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	pushNotifier := push.NewNotifier(pushSvc, pushStore, logger.With("component", "push"))

	dispatcher := notify.NewDispatcher(logger.With("component", "notify"),
		notify.NewLINEChannel(lineClient),
		notify.NewPushChannel(pushNotifier, pushSvc.Configured()),
		notify.NewEmailChannel(emailClient),
	)

	checker := access.NewChecker(locationStore, itemStore, logger.With("component", "access"))

	accounts := account.NewService(userStore, banStore, sessionStore, loginCodeStore,
		emailClient, lineClient, logger.With("component", "account"),
		account.WithLINEAddFriendURL(cfg.LINE.AddFriendURL()),
	)
	inv := inventory.NewService(locationStore, itemStore, userStore, checker, hub, dispatcher,
		logger.With("component", "inventory"))
	purchases := purchase.NewService(purchaseStore, userStore, locationStore, dispatcher,
		logger.With("component", "purchase"))

	sweeper := cleanup.NewSweeper(userStore, purchaseStore, sessionStore, loginCodeStore,
		logger.With("component", "cleanup"), accounts)
	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3Endpoint,
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
			Prefix:    cfg.Backup.S3Prefix,
		},
		Passphrase:    cfg.Backup.Passphrase,
		RetentionDays: cfg.Backup.RetentionDays,
	}, db, backupStore, logger.With("component", "backup"))

	issuer := admin.NewIssuer(cfg.Admin.SigningKey, cfg.Admin.PasswordHash, cfg.Admin.TokenTTL)
	adminSvc := admin.NewService(userStore, banStore, sessionStore, store.NewAdminStore(db),
		sweeper, backupMgr, logger.With("component", "admin"))

	return &Server{
		db:         db,
		hub:        hub,
		checker:    checker,
		sessions:   middleware.NewSessions(sessionStore, userStore, logger.With("component", "session")),
		issuer:     issuer,
		dispatcher: dispatcher,
		scheduler: cleanup.NewScheduler(sweeper, cfg.Cleanup.Interval, cleanup.Options{
			InactiveDays: cfg.Cleanup.InactiveDays,
			Orphaned:     cfg.Cleanup.Orphaned,
		}),
		rateLimiter: middleware.NewRateLimiter(),
		stop:        make(chan struct{}),
		authH:       handler.NewAuthHandler(accounts, inv, logger.With("component", "auth")),
		profileH:    handler.NewProfileHandler(accounts, lineClient, logger.With("component", "profile")),
		locationH:   handler.NewLocationHandler(inv, logger.With("component", "location")),
		itemH:       handler.NewItemHandler(inv, logger.With("component", "item")),
		purchaseH:   handler.NewPurchaseHandler(purchases, logger.With("component", "purchase")),
		pushH:       handler.NewPushHandler(pushStore, pushSvc, pushNotifier, logger.With("component", "push_handler")),
		adminH:      handler.NewAdminHandler(adminSvc, issuer, logger.With("component", "admin")),
		logger:      logger,
	}
}

// Start launches the background loops.
func (s *Server) Start(ctx context.Context) {
	s.scheduler.Start(ctx)
	go s.rateLimiter.Run(5*time.Minute, s.stop)
}

// Stop ends the background loops and waits for in-flight notifications.
func (s *Server) Stop() {
	close(s.stop)
	s.scheduler.Stop()
	s.dispatcher.Wait()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("GET /email-change/{code}", s.profileH.ShowEmailChange)
	outerMux.HandleFunc("POST /email-change/{code}", s.profileH.ConfirmEmailChange)
	outerMux.HandleFunc("POST /line/webhook", s.profileH.LINEWebhook)
	outerMux.Handle("GET /user/{userID}", s.sessions.OptionalAuth(http.HandlerFunc(s.authH.Dashboard)))

	// Administrator routes carry their own bearer token
	outerMux.HandleFunc("POST /admin/token", s.rateLimitedHandler(s.adminH.Token))
	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)
	outerMux.Handle("/admin/", middleware.RequireAdmin(s.issuer, s.logger.With("component", "admin_auth"))(adminMux))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", s.sessions.RequireAuth(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, authRateLimit, authRateWindow)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Profile
	mux.HandleFunc("GET /api/me", s.profileH.Me)
	mux.HandleFunc("PUT /api/me", s.profileH.UpdateMe)
	mux.HandleFunc("POST /api/me/email-change", s.profileH.RequestEmailChange)
	mux.HandleFunc("POST /api/me/line/link-code", s.profileH.CreateLinkCode)
	mux.HandleFunc("DELETE /api/me/line", s.profileH.UnlinkLINE)

	// Lists across locations
	mux.HandleFunc("GET /api/me/replenish", s.itemH.ListFor(inventory.ListReplenish))
	mux.HandleFunc("GET /api/me/shopping", s.itemH.ListFor(inventory.ListShopping))
	mux.HandleFunc("POST /api/me/line/replenish", s.itemH.SendFor(inventory.ListReplenish))
	mux.HandleFunc("POST /api/me/line/shopping", s.itemH.SendFor(inventory.ListShopping))

	// Locations and members
	mux.HandleFunc("POST /api/locations", s.locationH.Create)
	mux.HandleFunc("GET /api/locations", s.locationH.List)
	mux.HandleFunc("GET /api/locations/{id}", s.locationH.Get)
	mux.HandleFunc("PUT /api/locations/{id}", s.locationH.Rename)
	mux.HandleFunc("DELETE /api/locations/{id}", s.locationH.Delete)
	mux.HandleFunc("GET /api/locations/{id}/members", s.locationH.ListMembers)
	mux.HandleFunc("POST /api/locations/{id}/members", s.locationH.AddMember)
	mux.HandleFunc("DELETE /api/locations/{id}/members/{userID}", s.locationH.RemoveMember)

	// Items
	mux.HandleFunc("GET /api/locations/{id}/items", s.itemH.List)
	mux.HandleFunc("POST /api/locations/{id}/items", s.itemH.Create)
	mux.HandleFunc("GET /api/locations/{id}/items/{itemID}", s.itemH.Get)
	mux.HandleFunc("PUT /api/locations/{id}/items/{itemID}", s.itemH.Update)
	mux.HandleFunc("DELETE /api/locations/{id}/items/{itemID}", s.itemH.Delete)
	mux.HandleFunc("POST /api/locations/{id}/items/{itemID}/amount", s.itemH.Amount)
	mux.HandleFunc("POST /api/locations/{id}/items/{itemID}/inuse", s.itemH.InUse)
	mux.HandleFunc("POST /api/locations/{id}/items/{itemID}/move", s.itemH.Move)

	// Temporary purchases
	mux.HandleFunc("POST /api/purchases", s.purchaseH.Create)
	mux.HandleFunc("GET /api/purchases", s.purchaseH.List)
	mux.HandleFunc("GET /api/purchases/active", s.purchaseH.Active)
	mux.HandleFunc("GET /api/purchases/{id}", s.purchaseH.Get)
	mux.HandleFunc("PUT /api/purchases/{id}", s.purchaseH.Update)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.purchaseH.Delete)
	mux.HandleFunc("POST /api/purchases/{id}/complete", s.purchaseH.Complete)
	mux.HandleFunc("POST /api/purchases/{id}/cancel", s.purchaseH.Cancel)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, handler.LocationAuthorizer(s.checker), s.logger.With("component", "websocket")))
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/stats", s.adminH.Stats)
	mux.HandleFunc("GET /admin/bans", s.adminH.ListBans)
	mux.HandleFunc("POST /admin/bans", s.adminH.AddBan)
	mux.HandleFunc("DELETE /admin/bans/{id}", s.adminH.RemoveBan)
	mux.HandleFunc("GET /admin/users", s.adminH.ListUsers)
	mux.HandleFunc("DELETE /admin/users/{id}", s.adminH.DeleteUser)
	mux.HandleFunc("POST /admin/clear-all", s.adminH.ClearAll)
	mux.HandleFunc("POST /admin/cleanup", s.adminH.Cleanup)
	mux.HandleFunc("POST /admin/backup", s.adminH.Backup)
	mux.HandleFunc("GET /admin/backups", s.adminH.ListBackups)
	mux.HandleFunc("GET /admin/backups/{id}/download", s.adminH.DownloadBackup)
}

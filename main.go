package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kinship/config"
	"kinship/database"
	"kinship/handlers"
	"kinship/logger"
	"kinship/middleware"
	"kinship/push"
	"kinship/repository"
	"kinship/repository/memstore"
	"kinship/routes"
	"kinship/security"
	"kinship/services"
	"kinship/storage"
	"kinship/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting kinship api", zap.String("env", cfg.Env), zap.String("store", cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	stores, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	media, err := openMedia(cfg, log)
	if err != nil {
		return err
	}

	sender, err := push.NewSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, log)
	if err != nil {
		return err
	}

	hub := websocket.NewManager(log)
	go hub.Start(ctx)

	tokens := security.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	deps := services.Deps{
		Stores: stores,
		Media:  media,
		Hasher: security.NewBcryptHasher(),
		Tokens: tokens,
		Live:   hub,
		Push:   sender,
		Log:    log,
	}

	notifier := services.NewNotifier(deps)
	posts := services.NewPosts(deps, notifier)
	h := handlers.New(handlers.Deps{
		Accounts:       services.NewAccounts(deps, tokens.TTL()),
		Profiles:       services.NewProfiles(deps),
		Graph:          services.NewGraph(deps),
		Posts:          posts,
		Comments:       services.NewComments(deps, posts, notifier),
		Likes:          services.NewLikes(deps, notifier),
		Notifications:  services.NewNotifications(deps),
		Google:         security.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Log:            log,
	})
	if !cfg.GoogleEnabled() {
		log.Info("google sign-in disabled, GOOGLE_CLIENT_ID not set")
	}

	go services.NewSweeper(deps, cfg.SweepInterval).Run(ctx)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit, cfg.RateWindow)
	go pruneEvery(ctx, limiter, cfg.RateWindow)

	router := routes.SetupRouter(routes.Options{
		Handler:        h,
		Tokens:         tokens,
		Hub:            hub.Handler(tokens),
		Live:           hub,
		Limiter:        limiter,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Log:            log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

// openStores selects the storage backend. The returned func releases it.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (services.Stores, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New().Stores(), func() {}, nil
	}

	m, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		return services.Stores{}, nil, err
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = m.Disconnect(context.Background())
		return services.Stores{}, nil, err
	}
	closeFn := func() {
		if err := m.Disconnect(context.Background()); err != nil {
			log.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}
	return repository.NewStores(m.DB), closeFn, nil
}

func openMedia(cfg *config.Config, log *zap.Logger) (services.MediaStore, error) {
	if cfg.CloudinaryURL == "" {
		log.Warn("CLOUDINARY_URL not set, media kept in memory")
		return storage.NewMemory(), nil
	}
	return storage.NewCloudinary(cfg.CloudinaryURL, cfg.CloudinaryFolder, log)
}

func pruneEvery(ctx context.Context, rl *middleware.IPRateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune()
		}
	}
}

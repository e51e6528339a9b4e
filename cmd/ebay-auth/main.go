package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/snapsell/ebay-auth/internal/authflow"
	"github.com/snapsell/ebay-auth/internal/config"
	"github.com/snapsell/ebay-auth/internal/csrf"
	"github.com/snapsell/ebay-auth/internal/oauth"
	"github.com/snapsell/ebay-auth/internal/ratelimit"
	"github.com/snapsell/ebay-auth/internal/tokens"
)

// Version is set by the build process
var Version = "dev"

func main() {
	// Load server configuration from environment
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Error loading server configuration: %v", err)
	}

	// Load and validate OAuth configuration; dependent components must not
	// start on a partial config
	oauthCfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading OAuth configuration: %v", err)
	}

	// Select store backends: Redis when configured, in-memory otherwise
	var (
		redisClient *redis.Client
		states      authflow.StateStore
		tokenStore  tokens.Store
		limiter     ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Error parsing Redis URL: %v", err)
		}
		redisClient = redis.NewClient(redisOpts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Error connecting to Redis: %v", err)
		}

		states = authflow.NewRedisStateStore(redisClient)
		tokenStore = tokens.NewRedisStore(redisClient)
		limiter = ratelimit.NewRedisLimiter(redisClient, oauthCfg.RateMax, oauthCfg.RateWindow)
	} else {
		log.Println("REDIS_URL not set, using in-memory stores (single instance only)")
		states = authflow.NewMemoryStateStore()
		tokenStore = tokens.NewMemoryStore()
		limiter = ratelimit.NewMemoryLimiter(oauthCfg.RateMax, oauthCfg.RateWindow)
	}

	// Token endpoint client
	provider, err := oauth.NewEbayProvider(oauth.EbayConfig{
		ClientID:     oauthCfg.ClientID,
		ClientSecret: oauthCfg.ClientSecret,
		RedirectURI:  oauthCfg.RedirectURI,
		TokenURL:     oauthCfg.TokenURL(),
	}, limiter)
	if err != nil {
		log.Fatalf("Error creating provider: %v", err)
	}

	// Token manager with transparent refresh
	manager := tokens.NewManager(tokenStore, provider,
		tokens.WithRefreshMargin(cfg.RefreshMargin),
	)

	// Authorization flow
	scopes := oauthCfg.ScopeList()
	if scopes == nil {
		scopes = authflow.DefaultScopes
	}
	oc := &oauth2.Config{
		ClientID:    oauthCfg.ClientID,
		RedirectURL: oauthCfg.RedirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  oauthCfg.AuthURL(),
			TokenURL: oauthCfg.TokenURL(),
		},
	}
	signer := csrf.NewSigner([]byte(oauthCfg.StateSecret))
	flow := authflow.NewFlow(oc, signer, states, manager, provider,
		authflow.WithAttemptTTL(cfg.AttemptTTL),
		authflow.WithDefaultReturnTo(cfg.DefaultReturnTo),
		authflow.WithEventSink(authflow.SlogSink{}),
	)

	// Sweep abandoned attempts in the background
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepLoop(sweepCtx, flow, cfg.SweepInterval)

	// Create and configure server
	srv := newServer(cfg, flow, manager)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start server
	go func() {
		log.Printf("Server listening on port %d (environment: %s)", cfg.Port, oauthCfg.Environment)
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or error
	select {
	case err := <-serverErrors:
		log.Fatalf("Error starting server: %v", err)

	case <-shutdown:
		log.Println("Starting shutdown")
		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
			if err := httpServer.Close(); err != nil {
				log.Printf("Error closing server: %v", err)
			}
		}

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing Redis connection: %v", err)
			}
		}
	}
}

// sweepLoop garbage-collects expired authorization attempts
func sweepLoop(ctx context.Context, flow *authflow.Flow, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := flow.SweepExpired(ctx); err != nil {
				log.Printf("Error sweeping expired attempts: %v", err)
			} else if n > 0 {
				log.Printf("Swept %d expired authorization attempts", n)
			}
		}
	}
}

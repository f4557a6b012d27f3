package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/mneiter/nuro/middleware/ratelimit"
	apimod "github.com/mneiter/nuro/modules/api"
	authmod "github.com/mneiter/nuro/modules/auth"
	tickcachemod "github.com/mneiter/nuro/modules/tickcache"
	timermod "github.com/mneiter/nuro/modules/timer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	authDBPath := getEnv("NURO_AUTH_DB_PATH", "./nuro-auth.db")
	timerDBPath := getEnv("NURO_TIMER_DB_PATH", "./nuro-timers.db")
	httpAddr := getEnv("NURO_HTTP_ADDR", ":3000")
	jwtSecret := getEnv("NURO_JWT_SECRET", "")
	tokenTTL := getEnvDuration("NURO_TOKEN_TTL", time.Hour)
	waitBudget := getEnvDuration("NURO_WAIT_BUDGET", timermod.DefaultWaitBudget)
	pollInterval := getEnvDuration("NURO_POLL_INTERVAL", timermod.DefaultPollInterval)
	lockTTL := getEnvDuration("NURO_FINISH_LOCK_TTL", tickcachemod.DefaultLockTTL)
	rateTokens := getEnvInt("NURO_RATE_LIMIT_TOKENS", 60)
	ratePeriod := getEnvDuration("NURO_RATE_LIMIT_PERIOD", time.Minute)

	if jwtSecret == "" {
		log.Println("Warning: NURO_JWT_SECRET not set, using insecure default")
	}

	log.Println("=== Nuro Timer Service ===")
	log.Printf("Redis: %s", redisAddr)
	log.Printf("Auth DB: %s", authDBPath)
	log.Printf("Timer DB: %s", timerDBPath)
	log.Printf("HTTP: %s", httpAddr)
	log.Printf("Wait budget: %s", waitBudget)
	log.Printf("Poll interval: %s", pollInterval)

	// Create modules
	jwtConfig := authmod.DefaultJWTConfig()
	if jwtSecret != "" {
		jwtConfig.SecretKey = jwtSecret
	}
	jwtConfig.AccessTokenTTL = tokenTTL

	cacheModule := tickcachemod.NewModule(redisAddr, lockTTL)
	authModule := authmod.NewModule(authDBPath, jwtConfig)
	timerModule := timermod.NewModule(timerDBPath, timermod.Config{
		WaitBudget:   waitBudget,
		PollInterval: pollInterval,
	})
	apiModule := apimod.NewModule(httpAddr)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Register modules
	app.Register(cacheModule)
	app.Register(authModule)
	app.Register(timerModule)
	app.Register(apiModule)

	// Start modules (this handles Init and Start)
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	// Wire up dependencies after start.
	// Timer module needs the Redis-backed cache, lock, and notifier.
	timerModule.SetCoordination(cacheModule.Cache(), cacheModule.Lock(), cacheModule.Notifier())

	// API module needs the timer service and the rate limiter.
	apiModule.SetTimerService(timerModule.Service())
	apiModule.SetLimiter(
		ratelimit.NewLimiter(cacheModule.Client(), tickcachemod.RateLimitKeyPrefix()),
		ratelimit.Config{Tokens: rateTokens, Period: ratePeriod},
	)

	log.Println("=== Application Started ===")
	log.Printf("API available at http://localhost%s", httpAddr)
	log.Println("Endpoints:")
	log.Println("  GET  /health                        - Health check")
	log.Println("  POST /api/v1/auth/register          - Create account")
	log.Println("  POST /api/v1/auth/login             - Obtain access token")
	log.Println("  GET  /api/v1/auth/me                - Current user")
	log.Println("  POST /api/v1/timers                 - Start a timer")
	log.Println("  GET  /api/v1/timers                 - List timers")
	log.Println("  GET  /api/v1/timers/:id             - Get a timer")
	log.Println("  POST /api/v1/timers/:id/cancel      - Cancel a timer")
	log.Println("  GET  /api/v1/timers/:id/tick        - Long-poll for changes")
	log.Println("  POST /api/v1/timers/batch/tick      - Resolve several timers")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown using gelmium/graceful-shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	// Wait for shutdown signal and exit with appropriate code
	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

// Package app wires the capture pipeline together and owns the lifecycle
// of its background loops.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"futures-sentinel/cache"
	"futures-sentinel/config"
	"futures-sentinel/database"
	"futures-sentinel/feed"
	"futures-sentinel/marketclock"
	"futures-sentinel/quotes"
	"futures-sentinel/signals"
)

// App represents the main application
type App struct {
	config *config.Config

	db     *database.Database
	rawDB  *database.DB
	redis  *cache.RedisClient
	repo   *database.CaptureRepository
	clock  *marketclock.Clock
	feed   *feed.QuoteFeed
	stats  *StatsRefresher
	scan   *CaptureScanner
	grader *Grader
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
		clock:  marketclock.New(),
	}
}

// Start starts the application and blocks until shutdown
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database connections
	fmt.Println("🗄️  Connecting to database...")

	dbPort, err := strconv.Atoi(a.config.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}

	db, err := database.Connect(
		a.config.DatabaseHost,
		dbPort,
		a.config.DatabaseName,
		a.config.DatabaseUser,
		a.config.DatabasePassword,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	rawDB, err := database.NewConnection(database.Config{
		Host:     a.config.DatabaseHost,
		Port:     a.config.DatabasePort,
		User:     a.config.DatabaseUser,
		Password: a.config.DatabasePassword,
		DBName:   a.config.DatabaseName,
	})
	if err != nil {
		return fmt.Errorf("raw database connection failed: %w", err)
	}
	a.rawDB = rawDB

	// 2. Redis connection. Unlike a pure cache this is load-bearing: it
	// holds the session counter and the live quote store.
	fmt.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
	)
	if redisClient == nil {
		return fmt.Errorf("redis connection failed: session counter and live quotes unavailable")
	}
	a.redis = redisClient

	// 3. Schema
	a.repo = database.NewCaptureRepository(a.db)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	if err := ensureDefaultMarket(a.repo, a.config.Market); err != nil {
		// Without any market the loops idle until one is configured
		log.Printf("⚠️  Default market seeding failed: %v", err)
	}

	// 4. Signal pipeline
	configCache := signals.NewConfigCache(a.repo, a.config.Capture.ThresholdCacheTTL)
	classifier := signals.NewClassifier(configCache)
	targets := signals.NewTargetCalculator(configCache)
	source := quotes.NewRedisSource(a.redis)

	a.stats = NewStatsRefresher(a.rawDB)
	capturer := NewCapturer(a.repo, source, classifier, targets, a.redis, a.stats, a.config.Capture)
	a.scan = NewCaptureScanner(a.repo, a.redis, capturer, a.clock, a.config.Capture.ScanInterval)
	a.grader = NewGrader(a.repo, a.redis, a.clock, a.config.Grader)

	// 5. Quote feed
	if a.config.Feed.Enabled && a.config.Feed.URL != "" {
		a.feed = feed.NewQuoteFeed(a.config.Feed, a.redis)
		if err := a.feed.Connect(); err != nil {
			// The service still captures and grades off whatever an
			// external publisher writes to Redis
			log.Printf("⚠️  Quote feed connection failed, continuing without feed: %v", err)
			a.feed = nil
		}
	} else {
		log.Println("ℹ️  Quote feed disabled; expecting an external quote publisher")
	}

	// 6. Background loops
	log.Println("🚀 Starting capture pipeline...")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scan.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.grader.Start(ctx)
	}()

	go a.stats.Start()

	if a.feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.feed.Run(ctx)
		}()
	}

	// 7. Wait for interrupt and perform graceful shutdown
	err = a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")

	// Cancel context to stop all loops; in-flight ticks finish first
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if a.stats != nil {
			fmt.Println("🔄 Stopping stats refresher...")
			a.stats.Stop()
		}

		if a.feed != nil {
			fmt.Println("📡 Closing quote feed connection...")
			if err := a.feed.Close(); err != nil {
				log.Printf("Error closing quote feed: %v", err)
			}
		}

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			} else {
				fmt.Println("✅ Database connection closed")
			}
		}
		if a.rawDB != nil {
			if err := a.rawDB.Close(); err != nil {
				log.Printf("Error closing raw database connection: %v", err)
			}
		}

		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Printf("Error closing redis: %v", err)
			} else {
				fmt.Println("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		fmt.Println("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}

package app

import (
	"log"
	"time"

	"futures-sentinel/database"
)

// StatsRefresher periodically refreshes the capture performance
// materialized view. The capturer also triggers it best-effort right
// after a capture so the rollups pick up the new session quickly.
type StatsRefresher struct {
	db   *database.DB
	done chan bool
}

// NewStatsRefresher creates a new stats refresher over the raw connection
func NewStatsRefresher(db *database.DB) *StatsRefresher {
	return &StatsRefresher{
		db:   db,
		done: make(chan bool),
	}
}

// Start begins the refresh loop
func (sr *StatsRefresher) Start() {
	log.Println("🔄 Stats Refresher started")

	// Run every 5 minutes to keep rollup data fresh
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	// Initial run
	sr.refreshView()

	for {
		select {
		case <-ticker.C:
			sr.refreshView()
		case <-sr.done:
			log.Println("🔄 Stats Refresher stopped")
			return
		}
	}
}

// Stop stops the refresh loop
func (sr *StatsRefresher) Stop() {
	sr.done <- true
}

// RefreshOnce refreshes the view once, returning the error to the caller.
// Used by the capturer's post-capture hook.
func (sr *StatsRefresher) RefreshOnce() error {
	return sr.db.RefreshCapturePerformance()
}

// refreshView refreshes the materialized view
func (sr *StatsRefresher) refreshView() {
	log.Println("🔄 Refreshing capture_performance_daily materialized view...")

	if err := sr.db.RefreshCapturePerformance(); err != nil {
		log.Printf("⚠️ Failed to refresh capture performance view: %v", err)
		return
	}

	log.Println("✅ Capture performance view refreshed successfully")
}

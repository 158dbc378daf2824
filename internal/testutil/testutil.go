// Package testutil provides helpers for tests above the persistence layer,
// such as a migrated sqlite store, a fake clock and gin request helpers.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/migration"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Clock is a settable time source for stores under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at start
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// NewDatabase opens a sqlite database under t.TempDir() with the full
// brewery schema migrated.
func NewDatabase(t *testing.T) *persistence.Database {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "brewery.db"),
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	})
	require.NoError(t, err, "Failed to open sqlite database")
	t.Cleanup(func() { _ = db.Close() })

	_, err = migration.New(db, migration.Catalog(), zap.NewNop()).Up(context.Background())
	require.NoError(t, err, "Failed to migrate test database")
	return db
}

// NewStore returns a record store over a freshly migrated database
func NewStore(t *testing.T) *persistence.RecordStore {
	t.Helper()
	return persistence.NewRecordStore(NewDatabase(t), migration.Catalog())
}

// NewStoreWithClock returns a record store that reads time from clock
func NewStoreWithClock(t *testing.T, clock *Clock) *persistence.RecordStore {
	t.Helper()
	return NewStore(t).WithClock(clock.Now)
}

// NewTestUUID generates a deterministic UUID from seed.
func NewTestUUID(seed string) string {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed)).String()
}

// AssertEventually retries condition until it passes or times out.
func AssertEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	t.Fatalf("Condition not met within %v: %v", timeout, msgAndArgs)
}

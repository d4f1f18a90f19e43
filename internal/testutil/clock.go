package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is the crawl clock used in tests: CrawlStats.Started/Finished and
// the operation run id derive from it, so tests can assert exact values.
// Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock starts at 2024-01-15 10:30:00 UTC. Snapshot versions pushed
// with it are 1705314600 and run ids read "20240115T103000Z".
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, e.g. to push a newer snapshot.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator numbers crawl runs "run-1", "run-2", ... in Run order.
type StubIDGenerator struct {
	mu   sync.Mutex
	runs int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs++
	return fmt.Sprintf("run-%d", g.runs)
}

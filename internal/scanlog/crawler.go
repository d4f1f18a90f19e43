package scanlog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CrawlStats summarizes one Crawler.Run.
type CrawlStats struct {
	RunID    string
	Folders  int
	Files    int
	Dirty    int
	Errors   int
	Bytes    int64
	Started  time.Time
	Finished time.Time
}

// Crawler drains the pending-folder work queue of one partition. Each
// folder is listed, its children are recorded, its size is set to the sum
// of its direct files and it is marked SCANNED (or ERROR if listing failed).
//
// The queue lives in the store, so a cancelled Run resumes where it left off.
// A Crawler is single-consumer: run at most one per partition at a time.
type Crawler struct {
	store    Store
	lister   Lister
	host     string
	deviceID string
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	// MaxFolders stops Run after this many folders when positive.
	MaxFolders int
}

// NewCrawler creates a Crawler for the (host, deviceID) partition.
func NewCrawler(store Store, lister Lister, host, deviceID string, logger Logger, clock Clock, idgen IDGenerator) *Crawler {
	return &Crawler{
		store:    store,
		lister:   lister,
		host:     host,
		deviceID: deviceID,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// Seed records root as a pending folder. Seeding an already known folder is
// a no-op.
func (c *Crawler) Seed(ctx context.Context, root string) error {
	if err := c.store.InsertFolderRecord(ctx, c.host, root, c.deviceID); err != nil {
		return fmt.Errorf("seeding %s: %w", root, err)
	}
	c.logger.Info("crawl root recorded", "folder", root, "host", c.host, "device_id", c.deviceID)
	return nil
}

// Run processes pending folders until none remain, MaxFolders is reached or
// ctx is cancelled. On cancellation the folder in progress stays pending and
// ctx.Err() is returned alongside the stats gathered so far.
func (c *Crawler) Run(ctx context.Context) (*CrawlStats, error) {
	stats := &CrawlStats{
		RunID:   c.idgen.New(),
		Started: c.clock.Now(),
	}
	defer func() { stats.Finished = c.clock.Now() }()

	c.logger.Info("crawl started", "run_id", stats.RunID, "host", c.host, "device_id", c.deviceID)

	for c.MaxFolders <= 0 || stats.Folders+stats.Errors < c.MaxFolders {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("crawl interrupted", "run_id", stats.RunID, "folders", stats.Folders)
			return stats, err
		}

		folder, ok, err := c.store.NextPendingFolder(ctx, c.host, c.deviceID)
		if err != nil {
			return stats, fmt.Errorf("fetching next folder: %w", err)
		}
		if !ok {
			break
		}

		if err := c.scanFolder(ctx, folder, stats); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				c.logger.Warn("crawl interrupted", "run_id", stats.RunID, "folder", folder)
				return stats, ctx.Err()
			}

			c.logger.Error("scanning folder failed", "folder", folder, "error", err)
			stats.Errors++
			if _, err := c.store.UpdateFolderStatus(ctx, c.host, folder, c.deviceID, StatusError); err != nil {
				return stats, fmt.Errorf("marking %s as failed: %w", folder, err)
			}
			continue
		}
		stats.Folders++
	}

	c.logger.Info("crawl finished",
		"run_id", stats.RunID,
		"folders", stats.Folders,
		"files", stats.Files,
		"dirty", stats.Dirty,
		"errors", stats.Errors,
		"bytes", stats.Bytes,
	)
	return stats, nil
}

// scanFolder lists one folder and records its children.
func (c *Crawler) scanFolder(ctx context.Context, folder string, stats *CrawlStats) error {
	entries, err := c.lister.List(ctx, folder)
	if err != nil {
		return fmt.Errorf("listing folder: %w", err)
	}

	known, err := c.store.ListFolderFiles(ctx, c.host, folder, c.deviceID)
	if err != nil {
		return fmt.Errorf("loading known files: %w", err)
	}
	byName := make(map[string]*Record, len(known))
	for _, r := range known {
		byName[r.Filename] = r
	}

	var (
		changes []Change
		total   int64
	)
	for _, e := range entries {
		if e.IsDir {
			// Key-only upsert: creates the folder as pending, leaves a known
			// folder untouched.
			changes = append(changes, Change{Key: Key{
				Host:     c.host,
				DeviceID: c.deviceID,
				Folder:   folder + e.Name + "/",
			}})
			continue
		}

		if e.Stat.Size > 0 {
			total += e.Stat.Size
		}
		key := Key{Host: c.host, DeviceID: c.deviceID, Folder: folder, Filename: e.Name}
		prev := byName[e.Name]
		switch {
		case prev == nil:
			changes = append(changes, Change{Key: key, Payload: Payload{}.WithStat(e.Stat).WithStatus(StatusDefault)})
			stats.Files++
		case prev.Size == e.Stat.Size && prev.Mtime == e.Stat.Mtime:
			// Unchanged since last observed; keep its status.
		case prev.Status == StatusScanned:
			changes = append(changes, Change{Key: key, Payload: Payload{}.WithStat(e.Stat).WithStatus(StatusDirty)})
			stats.Dirty++
			c.logger.Debug("file changed", "folder", folder, "filename", e.Name)
		default:
			changes = append(changes, Change{Key: key, Payload: Payload{}.WithStat(e.Stat)})
		}
	}

	if len(changes) > 0 {
		if err := c.store.UpsertBatch(ctx, changes); err != nil {
			return fmt.Errorf("recording children: %w", err)
		}
	}
	if _, err := c.store.UpdateFolderSize(ctx, c.host, folder, c.deviceID, total); err != nil {
		return fmt.Errorf("updating folder size: %w", err)
	}
	if _, err := c.store.UpdateFolderStatus(ctx, c.host, folder, c.deviceID, StatusScanned); err != nil {
		return fmt.Errorf("updating folder status: %w", err)
	}

	stats.Bytes += total
	c.logger.Debug("folder scanned", "folder", folder, "entries", len(entries), "bytes", total)
	return nil
}

// Package app owns the lifecycle of the POS core: storage, queue,
// connectivity, processor, scheduler and checkout, built once per process.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fitri99main/itongPOS-sub000/internal/checkout"
	"github.com/fitri99main/itongPOS-sub000/internal/config"
	"github.com/fitri99main/itongPOS-sub000/internal/connectivity"
	"github.com/fitri99main/itongPOS-sub000/internal/db"
	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/kv"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
	"github.com/fitri99main/itongPOS-sub000/internal/remote"
	"github.com/fitri99main/itongPOS-sub000/internal/session"
	syncpkg "github.com/fitri99main/itongPOS-sub000/internal/sync"
	"github.com/fitri99main/itongPOS-sub000/internal/sync/queue"
	"github.com/fitri99main/itongPOS-sub000/internal/sync/scheduler"
	"github.com/fitri99main/itongPOS-sub000/internal/uuid"
)

// leaseTTL bounds how long a crashed register keeps its redis namespace.
const leaseTTL = 30 * time.Second

// Options replaces parts of the core that are normally built from config.
type Options struct {
	Store  kv.Store     // device storage; overrides config.Storage
	Remote remote.Store // remote system; overrides config.Remote
	Lookup session.LookupFunc
}

// Core is the running POS core.
type Core struct {
	Config    *config.Config
	Store     kv.Store
	Remote    remote.Store
	Sessions  *session.Cache
	Queue     *queue.SyncQueue
	Monitor   *connectivity.Monitor
	Processor *syncpkg.Processor
	Scheduler *scheduler.Scheduler
	Checkout  *checkout.Service
	SyncLog   *db.SyncLog              // nil unless storage is sqlite
	Host      *connectivity.HostSignal // nil unless the host pushes network state
	prober    *connectivity.Prober

	mu      sync.Mutex
	started bool
	closers []func() error
}

// New builds the core from cfg and loads persisted state.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Core{Config: cfg}
	if err := c.openStorage(opts.Store); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openRemote(ctx, opts.Remote); err != nil {
		c.Close()
		return nil, err
	}

	var source connectivity.Source
	switch cfg.Connectivity.Source {
	case config.SourceHost:
		c.Host = connectivity.NewHostSignal(connectivity.NetworkState{})
		source = c.Host
	default:
		c.prober = connectivity.NewProber(c.Remote, connectivity.ProberConfig{
			Interval: cfg.Connectivity.ProbeInterval,
			Timeout:  cfg.Connectivity.ProbeTimeout,
		})
		source = c.prober
	}

	c.Sessions = session.NewCache(c.Store, opts.Lookup)
	c.Queue = queue.NewSyncQueue(c.Store)
	c.Monitor = connectivity.NewMonitor(c.Store, source)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Queue.Load(gctx) })
	g.Go(func() error { return c.Monitor.Load(gctx) })
	g.Go(func() error { return c.Sessions.Load(gctx) })
	if err := g.Wait(); err != nil {
		c.Close()
		return nil, err
	}

	c.Processor = syncpkg.NewProcessor(c.Queue, syncpkg.ProcessorConfig{
		MaxRejections: cfg.Sync.MaxRejections,
		ActionTimeout: cfg.Sync.ActionTimeout,
	}, syncpkg.NewInsertTransactionHandler(c.Remote, c.Sessions))
	if c.SyncLog != nil {
		c.Processor.SetRecorder(c.SyncLog)
	}

	c.Scheduler = scheduler.NewScheduler(c.Processor, c.Queue, c.Monitor, &scheduler.SchedulerConfig{
		SyncInterval: cfg.Sync.Interval,
	})

	c.Checkout = checkout.NewService(c.Queue, c.Remote, c.Monitor, c.Sessions, checkout.Config{
		CashRegisterID: cfg.Device.CashRegisterID,
		WriteTimeout:   cfg.Remote.WriteTimeout,
	})

	logging.Info("POS core initialized", map[string]interface{}{
		"cash_register_id": cfg.Device.CashRegisterID,
		"storage":          cfg.Storage.Backend,
		"remote":           cfg.Remote.Backend,
		"connectivity":     cfg.Connectivity.Source,
		"pending":          c.Queue.Size(),
		"online":           c.Monitor.IsOnline(),
	})
	return c, nil
}

func (c *Core) openStorage(store kv.Store) error {
	if store != nil {
		c.Store = store
		return nil
	}

	switch c.Config.Storage.Backend {
	case config.StorageRedis:
		r, err := kv.NewRedis(c.Config.Storage.RedisURL, c.Config.RedisNamespace())
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "failed to open redis storage", err)
		}
		c.closers = append(c.closers, r.Close)
		if err := c.leaseNamespace(r); err != nil {
			return err
		}
		c.Store = r
	default:
		lock, err := db.LockDir(c.Config.Storage.DataDir)
		if errors.Is(err, db.ErrLocked) {
			return apperrors.Wrap(apperrors.ErrRegisterBusy, "register is already running on "+c.Config.Storage.DataDir, err)
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "failed to lock data directory", err)
		}
		c.closers = append(c.closers, lock.Unlock)

		database, err := db.Open(c.Config.Storage.DataDir)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to open local database", err)
		}
		c.Store = db.NewKVStore(database)
		c.SyncLog = db.NewSyncLog(database)
		c.closers = append(c.closers, database.Close)
	}
	return nil
}

// leaseNamespace claims the register's redis namespace for this process and
// keeps the claim alive until Close.
func (c *Core) leaseNamespace(r *kv.Redis) error {
	owner := uuid.NewActionID()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := r.Lease(ctx, owner, leaseTTL)
	cancel()
	if errors.Is(err, kv.ErrLeaseHeld) {
		return apperrors.Wrap(apperrors.ErrRegisterBusy, "register "+c.Config.Device.CashRegisterID+" is already running", err)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to lease redis namespace", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(leaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), leaseTTL/3)
				if err := r.Renew(ctx, owner, leaseTTL); err != nil {
					logging.Error("Failed to renew register lease", err, map[string]interface{}{
						"cash_register_id": c.Config.Device.CashRegisterID,
					})
				}
				cancel()
			}
		}
	}()

	c.closers = append(c.closers, func() error {
		close(stop)
		<-done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.Release(ctx, owner)
	})
	return nil
}

func (c *Core) openRemote(ctx context.Context, store remote.Store) error {
	if store == nil {
		switch c.Config.Remote.Backend {
		case config.RemotePostgres:
			pg, err := remote.NewPostgres(ctx, c.Config.Remote.DatabaseURL)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrRemoteUnavailable, "failed to configure remote database", err)
			}
			c.closers = append(c.closers, func() error { pg.Close(); return nil })

			migrateCtx, cancel := context.WithTimeout(ctx, c.Config.Remote.FetchTimeout)
			err = pg.Migrate(migrateCtx)
			cancel()
			if err != nil {
				// the device may be starting offline
				logging.Warn("Remote schema migration skipped", map[string]interface{}{"error": err.Error()})
			}
			store = pg
		default:
			store = remote.NewMemory()
		}
	}
	c.Remote = remote.WithFetchTimeout(store, c.Config.Remote.FetchTimeout)
	return nil
}

// Start starts the live connectivity signal and the scheduler.
func (c *Core) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	if c.prober != nil {
		c.prober.Start(ctx, c.Monitor.UpdateLive)
	}
	if c.Host != nil {
		c.Host.Attach(c.Monitor.UpdateLive)
		if state, err := c.Host.Current(ctx); err == nil {
			c.Monitor.UpdateLive(state)
		}
	}
	c.Scheduler.Start(ctx)
}

// Close stops background work and releases storage. A pass in progress
// finishes first.
func (c *Core) Close() error {
	c.mu.Lock()
	started := c.started
	c.started = false
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	if started {
		c.Scheduler.Stop()
		if c.prober != nil {
			c.prober.Stop()
		}
		if c.Host != nil {
			c.Host.Attach(nil)
		}
	}

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Status is a snapshot for the status screen.
type Status struct {
	CashRegisterID string                    `json:"cash_register_id"`
	Connectivity   connectivity.Status       `json:"connectivity"`
	Scheduler      scheduler.SchedulerStatus `json:"scheduler"`
	Queue          queue.Stats               `json:"queue"`
	SyncStatus     syncpkg.SyncStatus        `json:"sync_status"`
	LastError      string                    `json:"last_error,omitempty"`
	UserID         string                    `json:"user_id,omitempty"`
}

// Status returns the current core status.
func (c *Core) Status(ctx context.Context) Status {
	status := Status{
		CashRegisterID: c.Config.Device.CashRegisterID,
		Connectivity:   c.Monitor.Status(),
		Scheduler:      c.Scheduler.GetStatus(),
		Queue:          c.Queue.Stats(),
		SyncStatus:     c.Processor.Status(),
	}
	if err := c.Processor.LastError(); err != nil {
		status.LastError = err.Error()
	}
	if userID, ok := c.Sessions.CachedUserID(ctx); ok {
		status.UserID = userID
	}
	return status
}

// SyncHistory returns the latest recorded passes, newest first.
func (c *Core) SyncHistory(ctx context.Context, limit int) ([]db.SyncLogEntry, error) {
	if c.SyncLog == nil {
		return nil, nil
	}
	entries, err := c.SyncLog.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read sync history", err)
	}
	return entries, nil
}

// PruneSyncHistory drops passes older than age.
func (c *Core) PruneSyncHistory(ctx context.Context, age time.Duration) (int64, error) {
	if c.SyncLog == nil {
		return 0, nil
	}
	removed, err := c.SyncLog.Prune(ctx, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync history: %w", err)
	}
	return removed, nil
}

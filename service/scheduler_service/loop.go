package scheduler_service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Lease single-instance guard, satisfied by *database.RedisClient
type Lease interface {
	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, owner string) error
}

const leaseKeyPrefix = "digital-will:lease:"

// loop runs tick every interval until stopped. With a lease set, a tick
// only runs while this process holds the lease for name: a heartbeat renews
// it during the tick and stopping() turns true once a renewal fails.
type loop struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)

	lease      Lease
	owner      string
	leaseTTL   time.Duration
	renewEvery time.Duration
	lost       atomic.Bool

	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
	log      *zap.Logger
}

func newLoop(name string, interval time.Duration, tick func(ctx context.Context), log *zap.Logger) *loop {
	return &loop{
		name:     name,
		interval: interval,
		tick:     tick,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (l *loop) setLease(lease Lease, owner string, ttl time.Duration) {
	l.lease = lease
	l.owner = owner
	l.leaseTTL = ttl
	l.renewEvery = ttl / 3
	if l.renewEvery < 10*time.Millisecond {
		l.renewEvery = 10 * time.Millisecond
	}
}

func (l *loop) leaseKey() string {
	return leaseKeyPrefix + l.name
}

// Start runs the first tick right away, then every interval
func (l *loop) Start() {
	l.log.Info("processor started", zap.Duration("interval", l.interval))
	go l.run()
}

// Stop waits for the in-flight tick to finish
func (l *loop) Stop() {
	l.once.Do(func() {
		l.log.Info("stopping processor...")
		close(l.stopChan)
		<-l.done
		if l.lease != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.lease.ReleaseLease(ctx, l.leaseKey(), l.owner); err != nil {
				l.log.Warn("failed to release lease", zap.Error(err))
			}
		}
		l.log.Info("processor stopped")
	})
}

func (l *loop) stopping() bool {
	if l.lost.Load() {
		return true
	}
	select {
	case <-l.stopChan:
		return true
	default:
		return false
	}
}

func (l *loop) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.guardedTick()
	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.guardedTick()
		}
	}
}

// guardedTick keeps the loop alive through panics and lease errors
func (l *loop) guardedTick() {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	// the receipt wait inside a tick is bounded on its own and must not be
	// cut short by Stop
	ctx := context.Background()

	if l.lease != nil {
		held, err := l.lease.AcquireLease(ctx, l.leaseKey(), l.owner, l.leaseTTL)
		if err != nil {
			l.log.Warn("lease check failed, skipping cycle", zap.Error(err))
			return
		}
		if !held {
			l.log.Debug("lease held by another instance, skipping cycle")
			return
		}
		l.lost.Store(false)
		stop := l.heartbeat()
		defer stop()
	}
	l.tick(ctx)
}

// heartbeat renews the lease every renewEvery until the returned func is called
func (l *loop) heartbeat() func() {
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(l.renewEvery)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
			}
			ctx, cancel := context.WithTimeout(context.Background(), min(l.renewEvery, 5*time.Second))
			held, err := l.lease.RenewLease(ctx, l.leaseKey(), l.owner, l.leaseTTL)
			cancel()
			if err != nil || !held {
				// finish the in-flight asset, take no new ones
				l.lost.Store(true)
				l.log.Warn("lease renewal failed, leaving cycle", zap.Bool("held", held), zap.Error(err))
				return
			}
		}
	}()
	return func() {
		close(quit)
		wg.Wait()
	}
}

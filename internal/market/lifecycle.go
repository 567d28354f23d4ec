package market

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LifecycleManager disables trading on markets whose end time has passed.
type LifecycleManager struct {
	marketManager *Manager
	interval      time.Duration
	now           func() time.Time
	onDeactivate  func(*Market)
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(mm *Manager, interval time.Duration, now func() time.Time) *LifecycleManager {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &LifecycleManager{
		marketManager: mm,
		interval:      interval,
		now:           now,
		stopCh:        make(chan struct{}),
	}
}

// OnDeactivate registers a callback invoked for every market the manager
// deactivates.
func (lm *LifecycleManager) OnDeactivate(fn func(*Market)) {
	lm.onDeactivate = fn
}

// Start begins the lifecycle management goroutine
func (lm *LifecycleManager) Start(ctx context.Context) {
	lm.wg.Add(1)
	go lm.run(ctx)
}

// Stop stops the lifecycle manager
func (lm *LifecycleManager) Stop() {
	close(lm.stopCh)
	lm.wg.Wait()
}

func (lm *LifecycleManager) run(ctx context.Context) {
	defer lm.wg.Done()

	ticker := time.NewTicker(lm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lm.stopCh:
			return
		case <-ticker.C:
			lm.Sweep()
		}
	}
}

// Sweep deactivates every active, unresolved market past its end time and
// returns how many were deactivated.
func (lm *LifecycleManager) Sweep() int {
	now := lm.now()
	count := 0

	for _, mkt := range lm.marketManager.List() {
		if !mkt.IsActive || mkt.Resolved || !mkt.Expired(now) {
			continue
		}
		updated, err := lm.marketManager.Update(mkt.ID, func(m *Market) error {
			if !m.IsActive || m.Resolved {
				return ErrMarketNotActive
			}
			m.IsActive = false
			return nil
		})
		if err != nil {
			if !errors.Is(err, ErrMarketNotActive) {
				log.WithField("market", mkt.ID).Errorf("failed to deactivate market: %v", err)
			}
			continue
		}
		count++
		log.WithField("market", mkt.ID).Info("market deactivated (end time passed)")
		if lm.onDeactivate != nil {
			lm.onDeactivate(updated)
		}
	}
	return count
}

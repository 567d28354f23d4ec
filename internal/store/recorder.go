package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"amm-backend/internal/engine"
	"amm-backend/internal/market"
)

// MarketSource looks up the current state of a market.
type MarketSource func(id string) (*market.Market, error)

// Recorder drains engine events into a journal on a background goroutine so
// that engine operations never wait on storage.
type Recorder struct {
	journal Journal
	markets MarketSource
	events  chan engine.Event
	timeout time.Duration
}

// NewRecorder creates a recorder with a queue of the given size.
func NewRecorder(j Journal, markets MarketSource, queue int) *Recorder {
	if queue <= 0 {
		queue = 1024
	}
	return &Recorder{
		journal: j,
		markets: markets,
		events:  make(chan engine.Event, queue),
		timeout: 5 * time.Second,
	}
}

// Record enqueues ev. It never blocks; when the queue is full the event is
// dropped and logged.
func (r *Recorder) Record(ev engine.Event) {
	select {
	case r.events <- ev:
	default:
		log.WithFields(log.Fields{
			"event":  ev.ID,
			"type":   ev.Type,
			"market": ev.MarketID,
		}).Warn("journal queue full, dropping event")
	}
}

// Run persists queued events until ctx is cancelled, then flushes what is
// left in the queue.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.events:
			r.persist(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.events:
					r.persist(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) persist(ev engine.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"event": ev.ID, "type": ev.Type, "market": ev.MarketID})

	rec, err := NewRecord(ev)
	if err != nil {
		logger.Errorf("failed to encode event: %v", err)
		return
	}
	if err := r.journal.Append(ctx, rec); err != nil {
		logger.Errorf("failed to append event: %v", err)
		return
	}

	if r.markets == nil || ev.MarketID == "" {
		return
	}
	m, err := r.markets(ev.MarketID)
	if err != nil {
		logger.Errorf("failed to load market snapshot: %v", err)
		return
	}
	if err := r.journal.SaveMarket(ctx, m); err != nil {
		logger.Errorf("failed to save market snapshot: %v", err)
	}
}

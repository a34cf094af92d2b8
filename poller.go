package main

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

// StateSink receives every canonical state the poller publishes, in fetch
// order, including the synthetic OFFLINE states on failure.
type StateSink func(PrinterState)

// fetchResult carries one completed fetch back into the scheduling loop.
// The generation tag lets the loop discard results from an adapter that
// was swapped out while the fetch was in flight.
type fetchResult struct {
	gen   int
	state PrinterState
	err   error
}

// Poller drives periodic fetches through the active adapter. One goroutine
// owns all scheduling state: a single-shot, manually rescheduled timer, the
// consecutive-failure counter, and the adapter reference. At most one fetch
// is in flight at a time; a new one is never started until the previous
// result has been handled or discarded.
type Poller struct {
	interval time.Duration
	sink     StateSink

	swapCh     chan Adapter
	intervalCh chan time.Duration
	stopOnce   sync.Once
	stopCh     chan struct{}
	done       chan struct{}

	// Owned by the run goroutine after Start.
	adapter  Adapter
	failures int
	lastOK   *time.Time
	lastErr  string

	rng *rand.Rand
}

func NewPoller(adapter Adapter, interval time.Duration, sink StateSink) *Poller {
	if interval < time.Duration(MinPollInterval*float64(time.Second)) {
		interval = time.Duration(MinPollInterval * float64(time.Second))
	}
	return &Poller{
		interval:   interval,
		sink:       sink,
		swapCh:     make(chan Adapter),
		intervalCh: make(chan time.Duration),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		adapter:    adapter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the scheduling loop with an immediate first fetch.
func (p *Poller) Start() {
	log.Printf("Starting poller (interval: %s, adapter: %s)", p.interval, p.adapter.Name())
	go p.run()
}

// Stop shuts the loop down. No further fetch fires, and an in-flight fetch
// that completes afterwards is discarded without publishing. Safe to call
// more than once; returns after the loop has exited.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		log.Printf("Stopping poller")
		close(p.stopCh)
	})
	<-p.done
}

// SetAdapter hot-swaps the backend. The failure counter resets (a new
// backend starts with full trust) and any in-flight fetch against the old
// adapter is cancelled and its result dropped.
func (p *Poller) SetAdapter(adapter Adapter) {
	select {
	case p.swapCh <- adapter:
	case <-p.stopCh:
	}
}

// SetInterval updates the normal polling interval. Takes effect when the
// next fetch is scheduled.
func (p *Poller) SetInterval(interval time.Duration) {
	select {
	case p.intervalCh <- interval:
	case <-p.stopCh:
	}
}

func (p *Poller) run() {
	defer close(p.done)

	timer := time.NewTimer(0) // immediate first poll
	defer timer.Stop()

	results := make(chan fetchResult, 1)
	gen := 0
	inFlight := false
	var cancelFetch context.CancelFunc

	cancel := func() {
		if cancelFetch != nil {
			cancelFetch()
			cancelFetch = nil
		}
	}
	defer cancel()

	for {
		select {
		case <-p.stopCh:
			return

		case adapter := <-p.swapCh:
			gen++
			cancel()
			p.adapter = adapter
			p.failures = 0
			log.Printf("Switched to adapter: %s", adapter.Name())
			if inFlight {
				// The pending result belongs to the old adapter; its
				// timer slot is gone, so schedule a fresh poll.
				inFlight = false
				resetTimer(timer, p.interval)
			}

		case interval := <-p.intervalCh:
			if interval >= time.Duration(MinPollInterval*float64(time.Second)) {
				p.interval = interval
				log.Printf("Updated polling interval to %s", interval)
			}

		case <-timer.C:
			if inFlight {
				continue
			}
			inFlight = true
			ctx, cancelFn := context.WithCancel(context.Background())
			cancelFetch = cancelFn
			go func(adapter Adapter, g int) {
				state, err := adapter.Fetch(ctx)
				results <- fetchResult{gen: g, state: state, err: err}
			}(p.adapter, gen)

		case result := <-results:
			if result.gen != gen {
				continue // stale result from a swapped-out adapter
			}
			inFlight = false
			cancel()
			if result.err != nil {
				p.handleFailure(result.err)
			} else {
				p.handleSuccess(result.state)
			}
			resetTimer(timer, p.nextDelay())
		}
	}
}

// handleSuccess resets the backoff state and publishes the fetched state,
// backfilling the success timestamp when the parser left it absent.
func (p *Poller) handleSuccess(state PrinterState) {
	now := time.Now()
	p.failures = 0
	p.lastOK = &now
	p.lastErr = ""

	if state.LastOK == nil {
		state.LastOK = &now
	}
	p.sink(state)
}

// handleFailure counts the failure and publishes a synthetic OFFLINE state
// carrying the last known good timestamp and the new error text.
func (p *Poller) handleFailure(err error) {
	p.failures++
	p.lastErr = truncateErr(err.Error())
	log.Printf("Poll failed (%d consecutive): %s", p.failures, p.lastErr)

	p.sink(PrinterState{
		Status:    StatusOffline,
		LastOK:    p.lastOK,
		LastError: p.lastErr,
	})
}

// nextDelay picks the next schedule: the plain interval after a success,
// exponential backoff with jitter after failures.
func (p *Poller) nextDelay() time.Duration {
	if p.failures == 0 {
		return p.interval
	}
	base := backoffDelay(p.failures)
	jitter := time.Duration(p.rng.Float64() * BackoffJitter * float64(base))
	return base + jitter
}

// backoffDelay computes min(MinBackoff * 2^(failures-1), MaxBackoff).
func backoffDelay(failures int) time.Duration {
	delay := MinBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= MaxBackoff {
			return MaxBackoff
		}
	}
	if delay > MaxBackoff {
		return MaxBackoff
	}
	return delay
}

// resetTimer safely rearms a single-shot timer whose channel may still hold
// a stale tick.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

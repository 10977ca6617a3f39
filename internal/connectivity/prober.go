package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

// Pinger checks that the remote system answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProberConfig holds probe timing.
type ProberConfig struct {
	Interval time.Duration // time between probes (default: 15 seconds)
	Timeout  time.Duration // deadline of one probe (default: 5 seconds)
}

// DefaultProberConfig returns default probe timing.
func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Prober derives the live network state by pinging the remote system at an
// interval. It is the live signal on hosts that do not report one.
type Prober struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ Source = (*Prober)(nil)

// NewProber creates a Prober.
func NewProber(pinger Pinger, config ProberConfig) *Prober {
	defaults := DefaultProberConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &Prober{
		pinger:   pinger,
		interval: config.Interval,
		timeout:  config.Timeout,
	}
}

// Current implements Source by probing once.
func (p *Prober) Current(ctx context.Context) (NetworkState, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.pinger.Ping(ctx); err != nil {
		logging.Debug("Connectivity probe failed", map[string]interface{}{"error": err.Error()})
		return NetworkState{}, nil
	}
	return NetworkState{Connected: true, InternetReachable: true}, nil
}

// Start probes every interval and hands each reading to sink until Stop is
// called or ctx is done.
func (p *Prober) Start(ctx context.Context, sink func(NetworkState)) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx, sink, p.stopCh)

	logging.Info("Connectivity prober started", map[string]interface{}{
		"interval_seconds": p.interval.Seconds(),
	})
}

// Stop stops probing and waits for the probe loop to exit.
func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info("Connectivity prober stopped")
}

func (p *Prober) loop(ctx context.Context, sink func(NetworkState), stopCh <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			state, _ := p.Current(ctx)
			sink(state)
		}
	}
}

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
)

// Probe decides connectivity by polling an HTTP endpoint. Any completed
// response counts as online; transport errors count as offline.
type Probe struct {
	client   *http.Client
	endpoint string
	interval time.Duration
	logger   *slog.Logger

	broadcaster
	online atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewProbe builds a connectivity probe from configuration.
func NewProbe(cfg *config.Config, logger *slog.Logger) *Probe {
	timeout := time.Duration(cfg.Connectivity.ProbeTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	interval := time.Duration(cfg.Connectivity.ProbeInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Probe{
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.Connectivity.ProbeURL,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "connectivity"),
	}
}

// Start begins polling until the context is canceled or Stop is called.
// The first poll runs synchronously so Online reflects reality before the
// daemon begins accepting work.
func (p *Probe) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("connectivity probe already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.check(runCtx)

	p.wg.Add(1)
	go p.loop(runCtx)
	return nil
}

// Stop terminates polling and waits for the loop to exit.
func (p *Probe) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// Online reports the most recent probe outcome.
func (p *Probe) Online() bool {
	return p.online.Load()
}

func (p *Probe) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *Probe) check(ctx context.Context) {
	online := p.reachable(ctx)
	previous := p.online.Swap(online)
	if previous == online {
		return
	}
	if online {
		p.logger.Info("connectivity restored", logging.String(logging.FieldEventType, "connectivity_online"))
	} else {
		p.logger.Info("connectivity lost", logging.String(logging.FieldEventType, "connectivity_offline"))
	}
	p.publish(online)
}

func (p *Probe) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.endpoint, nil)
	if err != nil {
		p.logger.Error("invalid probe endpoint",
			logging.Error(fmt.Errorf("build probe request: %w", err)),
			logging.String(logging.FieldErrorHint, "check connectivity.probe_url"))
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return true
}

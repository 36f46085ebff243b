package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/gologme/log"

	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/model"
)

// defaultInterval applies when the configured interval is not positive.
const defaultInterval = 5 * time.Minute

// Poller runs a Runner on a fixed interval, plus on demand via Trigger.
// Summaries are delivered on Results; a slow reader drops summaries rather
// than stalling the poller.
type Poller struct {
	runner   Runner
	interval time.Duration
	log      *log.Logger

	resultCh  chan model.RunSummary
	triggerCh chan struct{}

	mu      gosync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a stopped Poller.
func NewPoller(r Runner, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Poller{
		runner:    r,
		interval:  interval,
		log:       logger,
		resultCh:  make(chan model.RunSummary, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the polling loop. The first run happens immediately.
// Starting a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)
}

// Stop cancels any in-flight run and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
}

// Trigger requests an immediate run. Requests made while one is already
// pending are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Results delivers the summary of every completed run.
func (p *Poller) Results() <-chan model.RunSummary {
	return p.resultCh
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	summary := p.runner.Run(ctx)
	if ctx.Err() != nil {
		return
	}

	select {
	case p.resultCh <- summary:
	default:
		p.log.Debugf("dropping run summary, no reader")
	}
}

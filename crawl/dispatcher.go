package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/authcrawl/models"
	"github.com/use-agent/authcrawl/output"
	"golang.org/x/sync/errgroup"
)

// RequestHandler produces the output record for one dispatched URL.
// *Adapter implements it.
type RequestHandler interface {
	Handle(ctx context.Context, url string) (*models.OutputRecord, error)
}

// Stats summarizes a run.
type Stats struct {
	Dispatched int
	Succeeded  int
	Failed     int
	Filtered   int // offsite or unparsable URLs, never dispatched
}

// Dispatcher drives one crawl run: it signals run start, hands every
// allowed start URL to the handler, writes the records to the sink, and
// signals run finish.
type Dispatcher struct {
	signals     RunSignals
	handler     RequestHandler
	sink        output.Sink
	allowed     []string
	concurrency int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAllowedDomains restricts dispatch to these domains and their
// subdomains. Empty allows everything.
func WithAllowedDomains(domains []string) DispatcherOption {
	return func(d *Dispatcher) {
		d.allowed = d.allowed[:0]
		for _, dom := range domains {
			if dom = strings.ToLower(strings.TrimSpace(dom)); dom != "" {
				d.allowed = append(d.allowed, dom)
			}
		}
	}
}

// WithConcurrency sets how many URLs may be in the handler at once.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// NewDispatcher creates a dispatcher. Concurrency defaults to 1.
func NewDispatcher(signals RunSignals, handler RequestHandler, sink output.Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		signals:     signals,
		handler:     handler,
		sink:        sink,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes one crawl over startURLs.
//
// If the run fails to start, or a handler reports a fatal error, the sink
// is aborted and the error returned: no partial output is committed. If
// ctx is cancelled, no further URLs are dispatched, records already
// produced are committed, and ctx's error is returned. OnRunFinished is
// always delivered.
func (d *Dispatcher) Run(ctx context.Context, startURLs []string) (Stats, error) {
	var stats Stats
	began := time.Now()

	if err := d.signals.OnRunStarted(ctx); err != nil {
		d.finish(ctx)
		d.abort()
		return stats, err
	}
	slog.Info("crawl run started", "urls", len(startURLs), "concurrency", d.concurrency)

	runErr := d.dispatch(ctx, startURLs, &stats)
	d.finish(ctx)

	if runErr != nil {
		d.abort()
		slog.Error("crawl run aborted", "error", runErr, "dispatched", stats.Dispatched)
		return stats, runErr
	}

	if err := d.sink.Commit(); err != nil {
		return stats, fmt.Errorf("crawl: commit output: %w", err)
	}

	slog.Info("crawl run finished",
		"dispatched", stats.Dispatched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"filtered", stats.Filtered,
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return stats, ctx.Err()
}

func (d *Dispatcher) dispatch(ctx context.Context, urls []string, stats *Stats) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	var mu sync.Mutex
	for _, u := range urls {
		if !d.isAllowed(u) {
			slog.Info("filtered offsite request", "url", u)
			stats.Filtered++
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			// g.Go may have blocked on the limit past a cancellation.
			if gctx.Err() != nil {
				return nil
			}
			rec, err := d.handler.Handle(gctx, u)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Dispatched++
			if rec.Failed() {
				stats.Failed++
			} else {
				stats.Succeeded++
			}
			return d.sink.Write(rec)
		})
	}

	err := g.Wait()
	if err != nil && !models.IsFatal(err) && ctx.Err() != nil {
		// Cancelled by the caller, not by a fatal handler error.
		return nil
	}
	return err
}

// finish delivers OnRunFinished on a context detached from the run's
// cancellation, so cleanup always happens.
func (d *Dispatcher) finish(ctx context.Context) {
	if err := d.signals.OnRunFinished(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("run finish reported an error", "error", err)
	}
}

func (d *Dispatcher) abort() {
	if err := d.sink.Abort(); err != nil {
		slog.Warn("failed to discard output", "error", err)
	}
}

// isAllowed reports whether rawURL is http(s) and its host is an allowed
// domain or a subdomain of one.
func (d *Dispatcher) isAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}
	if len(d.allowed) == 0 {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, dom := range d.allowed {
		if host == dom || strings.HasSuffix(host, "."+dom) {
			return true
		}
	}
	return false
}

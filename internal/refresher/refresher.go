// Package refresher drives the periodic scrape-and-reconcile cycle and
// publishes its results: the in-memory lineup served over HTTP plus the
// playlist artifacts on disk.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"channel-lineup/internal/fileutil"
	"channel-lineup/internal/lineup"
	"channel-lineup/internal/platform/metrics"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another lineup run is in progress")

// Discoverer produces the channels seen by one scrape run, in discovery order.
type Discoverer interface {
	Discover(ctx context.Context) ([]lineup.Channel, error)
}

// Config carries the artifact locations and schedule for a Refresher.
type Config struct {
	// LockPath is the advisory lock file serializing runs across processes.
	LockPath string
	// M3UPath and JSONPath are where the playlist artifacts are written.
	// Either may be empty to skip that artifact.
	M3UPath  string
	JSONPath string
}

// Refresher runs scrape-and-reconcile cycles on a cron schedule and on
// demand. Runs are serialized: a mutex covers this process and a file lock
// covers concurrent processes sharing the same mapping store, since an
// interleaved load-modify-save cycle could drop assignments or hand out a
// duplicate number.
type Refresher struct {
	mu      sync.Mutex
	cfg     Config
	scraper Discoverer
	svc     *lineup.Service
	lock    *flock.Flock
	cron    *cron.Cron
	log     *slog.Logger
	metrics *metrics.Metrics

	current atomic.Pointer[lineup.Lineup]
}

// New constructs a Refresher. Metrics may be nil to disable metric recording.
func New(cfg Config, scraper Discoverer, svc *lineup.Service, log *slog.Logger, m *metrics.Metrics) *Refresher {
	r := &Refresher{
		cfg:     cfg,
		scraper: scraper,
		svc:     svc,
		log:     log,
		metrics: m,
	}
	if cfg.LockPath != "" {
		r.lock = flock.New(cfg.LockPath)
	}
	return r
}

// Start schedules runs per the cron expression (e.g. "0 0 * * *") and, if
// onBoot is set, kicks off an initial run in the background.
func (r *Refresher) Start(ctx context.Context, schedule string, onBoot bool) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Error("scheduled run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c

	if onBoot {
		go func() {
			if err := r.RunOnce(ctx); err != nil {
				r.log.Error("initial run failed", slog.String("error", err.Error()))
			}
		}()
	}
	return nil
}

// Stop cancels the cron schedule and waits for a scheduled run to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce executes one scrape-and-reconcile cycle: discover channels, fold
// them into the persistent mapping, write the playlist artifacts, and publish
// the lineup. A failed run leaves the previous lineup and artifacts in place.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.IncRuns()
	}
	err := r.runLocked(ctx)
	if err != nil && r.metrics != nil {
		r.metrics.IncRunFailures()
	}
	return err
}

func (r *Refresher) runLocked(ctx context.Context) error {
	if r.lock != nil {
		ok, err := r.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return ErrRunInProgress
		}
		defer r.lock.Unlock()
	}

	channels, err := r.scraper.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover channels: %w", err)
	}

	l, err := r.svc.Reconcile(channels)
	if err != nil {
		return fmt.Errorf("reconcile lineup: %w", err)
	}

	if err := r.writeArtifacts(l); err != nil {
		return err
	}

	r.current.Store(l)
	if r.metrics != nil {
		r.metrics.SetChannelsPublished(len(l.Channels))
	}
	r.log.Info("lineup published", slog.Int("channels", len(l.Channels)))
	return nil
}

func (r *Refresher) writeArtifacts(l *lineup.Lineup) error {
	if r.cfg.M3UPath != "" {
		if err := fileutil.WriteAtomic(r.cfg.M3UPath, []byte(lineup.BuildM3U(l)), 0o644); err != nil {
			return fmt.Errorf("write m3u playlist: %w", err)
		}
	}
	if r.cfg.JSONPath != "" {
		data, err := lineup.MarshalPlaylistJSON(l)
		if err != nil {
			return err
		}
		if err := fileutil.WriteAtomic(r.cfg.JSONPath, data, 0o644); err != nil {
			return fmt.Errorf("write json playlist: %w", err)
		}
	}
	return nil
}

// Current implements lineup.Source.
func (r *Refresher) Current() (*lineup.Lineup, bool) {
	l := r.current.Load()
	return l, l != nil
}

// RequestRefresh implements lineup.Source. The run happens in the background;
// failures are logged, not returned.
func (r *Refresher) RequestRefresh() {
	go func() {
		if err := r.RunOnce(context.Background()); err != nil {
			r.log.Error("requested run failed", slog.String("error", err.Error()))
		}
	}()
}

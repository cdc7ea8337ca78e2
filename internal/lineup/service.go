package lineup

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Notifier receives exactly one event per newly minted assignment, after the
// merged mapping has been durably saved. Implementations must not block for
// long; the reconcile run waits for them.
type Notifier interface {
	NewAssignment(a Assignment)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(Assignment)

// NewAssignment implements Notifier.
func (f NotifierFunc) NewAssignment(a Assignment) { f(a) }

// NewLogNotifier returns a Notifier that logs each new assignment.
func NewLogNotifier(log *slog.Logger) Notifier {
	return NotifierFunc(func(a Assignment) {
		log.Info("new channel number assigned",
			slog.String("stream_path", string(a.Path)),
			slog.Int("channel_number", int(a.Number)))
	})
}

// Service applies the numbering policy over a MappingStore: numbers for
// already-mapped stream paths are read, never recomputed; unseen stream paths
// get fresh numbers; the merged mapping is persisted only when it changed.
type Service struct {
	store    MappingStore
	notifier Notifier
}

// NewService returns a Service over the given store. notifier may be nil to
// disable new-assignment events (e.g. in tests).
func NewService(store MappingStore, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Reconcile folds one run's discovered channels into the persistent mapping
// and returns the resulting lineup, sorted by channel number.
//
// Duplicate stream paths in discovered keep their first occurrence; channels
// with an empty stream path are dropped. If the store cannot be loaded or
// validated, Reconcile aborts before any allocation and the store is left
// untouched. If no new stream path was discovered, Save is not invoked, so
// an unchanged run never rewrites the store.
func (s *Service) Reconcile(discovered []Channel) (*Lineup, error) {
	mapping, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load channel map: %w", err)
	}

	channels := make([]Channel, 0, len(discovered))
	var newPaths []StreamPath
	seen := make(map[StreamPath]bool, len(discovered))
	for _, ch := range discovered {
		if ch.StreamPath == "" || seen[ch.StreamPath] {
			continue
		}
		seen[ch.StreamPath] = true
		channels = append(channels, ch)
		if _, ok := mapping[ch.StreamPath]; !ok {
			newPaths = append(newPaths, ch.StreamPath)
		}
	}

	assignments := Allocate(mapping, newPaths)
	if len(assignments) > 0 {
		merged := mapping.Clone()
		for _, a := range assignments {
			merged[a.Path] = a.Number
		}
		if err := s.store.Save(merged); err != nil {
			return nil, fmt.Errorf("save channel map: %w", err)
		}
		mapping = merged

		if s.notifier != nil {
			for _, a := range assignments {
				s.notifier.NewAssignment(a)
			}
		}
	}

	for i := range channels {
		channels[i].Number = mapping[channels[i].StreamPath]
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Number < channels[j].Number })

	return &Lineup{GeneratedAt: time.Now().UTC(), Channels: channels}, nil
}

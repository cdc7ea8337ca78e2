package lineup

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// recordingStore wraps an InMemoryStore and records Save calls, with an
// optional injected Load failure.
type recordingStore struct {
	*InMemoryStore
	saves   int
	loadErr error
}

func (s *recordingStore) Load() (Mapping, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.InMemoryStore.Load()
}

func (s *recordingStore) Save(m Mapping) error {
	s.saves++
	return s.InMemoryStore.Save(m)
}

func channelsFor(paths ...StreamPath) []Channel {
	out := make([]Channel, 0, len(paths))
	for _, p := range paths {
		out = append(out, Channel{
			Name:       string(p),
			StreamPath: p,
			URL:        "http://example.com/" + string(p) + ".m3u8",
		})
	}
	return out
}

func TestService_Reconcile_bootstrap(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(nil)}
	var events []Assignment
	svc := NewService(store, NotifierFunc(func(a Assignment) { events = append(events, a) }))

	l, err := svc.Reconcile(channelsFor("A", "B", "C"))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	wantEvents := []Assignment{
		{Path: "A", Number: 1},
		{Path: "B", Number: 2},
		{Path: "C", Number: 3},
	}
	if !reflect.DeepEqual(events, wantEvents) {
		t.Errorf("events: got %v, want %v", events, wantEvents)
	}
	if store.saves != 1 {
		t.Errorf("expected exactly one save, got %d", store.saves)
	}

	got, _ := store.Load()
	want := Mapping{"A": 1, "B": 2, "C": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("persisted mapping: got %v, want %v", got, want)
	}
	if len(l.Channels) != 3 || l.Channels[0].Number != 1 || l.Channels[2].Number != 3 {
		t.Errorf("lineup not sorted by number: %v", l.Channels)
	}
}

func TestService_Reconcile_existing_numbers_unchanged(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(Mapping{"A": 1, "B": 2})}
	var events []Assignment
	svc := NewService(store, NotifierFunc(func(a Assignment) { events = append(events, a) }))

	// Discovery order differs from numeric order on purpose.
	l, err := svc.Reconcile(channelsFor("B", "C", "A"))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(events) != 1 || events[0].Path != "C" || events[0].Number != 3 {
		t.Errorf("expected exactly one event for C:3, got %v", events)
	}

	got, _ := store.Load()
	want := Mapping{"A": 1, "B": 2, "C": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("persisted mapping: got %v, want %v", got, want)
	}

	numbers := make([]ChannelNumber, len(l.Channels))
	for i, ch := range l.Channels {
		numbers[i] = ch.Number
	}
	if !reflect.DeepEqual(numbers, []ChannelNumber{1, 2, 3}) {
		t.Errorf("lineup numbers: got %v", numbers)
	}
}

func TestService_Reconcile_gap_never_backfilled(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(Mapping{"A": 1, "Z": 150})}
	svc := NewService(store, nil)

	if _, err := svc.Reconcile(channelsFor("C")); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got, _ := store.Load()
	want := Mapping{"A": 1, "Z": 150, "C": 151}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("persisted mapping: got %v, want %v", got, want)
	}
}

func TestService_Reconcile_idempotent_second_run_no_write(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(nil)}
	svc := NewService(store, nil)
	discovered := channelsFor("A", "B")

	if _, err := svc.Reconcile(discovered); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("first run should save once, got %d", store.saves)
	}

	if _, err := svc.Reconcile(discovered); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("second identical run should not save, got %d saves", store.saves)
	}
}

func TestService_Reconcile_idempotent_file_contents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channel_map.json")
	svc := NewService(NewFileStore(path), nil)
	discovered := channelsFor("A", "B", "C")

	if _, err := svc.Reconcile(discovered); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Reconcile(discovered); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Errorf("store contents changed across identical runs:\n%s\nvs\n%s", first, second)
	}
}

func TestService_Reconcile_absent_known_path_keeps_number(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(Mapping{"A": 1})}
	svc := NewService(store, nil)

	// A is not in this run's scrape; its entry must survive untouched.
	l, err := svc.Reconcile(channelsFor("B"))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got, _ := store.Load()
	if got["A"] != 1 {
		t.Errorf("entry for absent path was altered: %v", got)
	}
	if got["B"] != 2 {
		t.Errorf("new path should get 2, got %v", got)
	}
	if len(l.Channels) != 1 || l.Channels[0].StreamPath != "B" {
		t.Errorf("lineup should only carry discovered channels: %v", l.Channels)
	}
}

func TestService_Reconcile_load_failure_aborts(t *testing.T) {
	wantErr := errors.New("disk on fire")
	store := &recordingStore{InMemoryStore: NewInMemoryStore(nil), loadErr: wantErr}
	notified := false
	svc := NewService(store, NotifierFunc(func(Assignment) { notified = true }))

	_, err := svc.Reconcile(channelsFor("A"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected load error, got %v", err)
	}
	if store.saves != 0 {
		t.Errorf("no save after failed load, got %d", store.saves)
	}
	if notified {
		t.Error("no events after failed load")
	}
}

func TestService_Reconcile_duplicate_number_fatal(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(Mapping{"A": 1, "B": 1})}
	svc := NewService(store, nil)

	_, err := svc.Reconcile(channelsFor("C"))
	var dup *DuplicateNumberError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNumberError, got %v", err)
	}
	if store.saves != 0 {
		t.Errorf("no allocation on a corrupted store, got %d saves", store.saves)
	}
}

func TestService_Reconcile_drops_empty_and_duplicate_paths(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(nil)}
	svc := NewService(store, nil)

	discovered := append(channelsFor("A", "A", "B"), Channel{Name: "broken"})
	l, err := svc.Reconcile(discovered)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got, _ := store.Load()
	want := Mapping{"A": 1, "B": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("persisted mapping: got %v, want %v", got, want)
	}
	if len(l.Channels) != 2 {
		t.Errorf("lineup should drop empty and duplicate paths: %v", l.Channels)
	}
}

func TestService_Reconcile_injectivity(t *testing.T) {
	store := &recordingStore{InMemoryStore: NewInMemoryStore(Mapping{"A": 3, "B": 9})}
	svc := NewService(store, nil)

	if _, err := svc.Reconcile(channelsFor("A", "C", "D", "E")); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got, _ := store.Load()
	seen := make(map[ChannelNumber]StreamPath)
	for p, n := range got {
		if other, ok := seen[n]; ok {
			t.Errorf("number %d assigned to both %q and %q", n, p, other)
		}
		seen[n] = p
	}
}

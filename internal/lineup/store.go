package lineup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"channel-lineup/internal/fileutil"
)

// MappingStore is the persistence abstraction for the channel-number mapping.
// The persisted representation is the sole source of truth: nothing else in
// the system may originate a number.
type MappingStore interface {
	// Load returns the persisted mapping, or an empty mapping if no prior
	// state exists (first-run bootstrap). A store that exists but cannot be
	// read, parsed, or validated is fatal; callers must not allocate new
	// numbers on top of it.
	Load() (Mapping, error)

	// Save writes the mapping durably. Implementations must be atomic with
	// respect to partial writes: a crash mid-save never leaves a truncated
	// or invalid store behind.
	Save(Mapping) error
}

// CorruptStateError reports a mapping store that exists but cannot be used.
// The run must abort: allocating on top of an unreadable store risks silent
// duplicate assignment.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("channel map %s is unusable: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// DuplicateNumberError reports two or more stream paths sharing one channel
// number. The automated path never produces this; it can only come from a
// bad manual edit of the store.
type DuplicateNumberError struct {
	Number ChannelNumber
	Paths  []StreamPath
}

func (e *DuplicateNumberError) Error() string {
	paths := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		paths[i] = string(p)
	}
	return fmt.Sprintf("channel number %d assigned to multiple stream paths: %s",
		e.Number, strings.Join(paths, ", "))
}

// Validate checks the mapping invariants: every number positive, no number
// shared by two stream paths. It returns a *DuplicateNumberError for the
// lowest duplicated number, so manual edits are reported deterministically.
func (m Mapping) Validate() error {
	byNumber := make(map[ChannelNumber][]StreamPath)
	for p, n := range m {
		if n < 1 {
			return fmt.Errorf("stream path %q has non-positive channel number %d", p, n)
		}
		byNumber[n] = append(byNumber[n], p)
	}

	numbers := make([]ChannelNumber, 0, len(byNumber))
	for n, paths := range byNumber {
		if len(paths) > 1 {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return nil
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	paths := byNumber[numbers[0]]
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return &DuplicateNumberError{Number: numbers[0], Paths: paths}
}

// FileStore persists the mapping as a JSON object (stream path -> number) at
// a fixed path. Operators may add entries to the file by hand; such entries
// are honored as if allocated automatically and become immutable from then on.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by the file at path. The file does
// not need to exist yet; it is created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string { return s.path }

// Load implements MappingStore.Load.
func (s *FileStore) Load() (Mapping, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Mapping{}, nil
	}
	if err != nil {
		return nil, &CorruptStateError{Path: s.path, Err: err}
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &CorruptStateError{Path: s.path, Err: err}
	}

	m := make(Mapping, len(raw))
	for p, n := range raw {
		m[StreamPath(p)] = ChannelNumber(n)
	}
	if err := m.Validate(); err != nil {
		var dup *DuplicateNumberError
		if errors.As(err, &dup) {
			return nil, dup
		}
		return nil, &CorruptStateError{Path: s.path, Err: err}
	}
	return m, nil
}

// Save implements MappingStore.Save.
func (s *FileStore) Save(m Mapping) error {
	raw := make(map[string]int, len(m))
	for p, n := range m {
		raw[string(p)] = int(n)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode channel map: %w", err)
	}
	data = append(data, '\n')

	if err := fileutil.WriteAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write channel map: %w", err)
	}
	return nil
}

// InMemoryStore is an in-memory MappingStore for tests and embedding.
type InMemoryStore struct {
	mapping Mapping
}

// NewInMemoryStore returns an InMemoryStore seeded with the given mapping.
// A nil seed starts empty.
func NewInMemoryStore(seed Mapping) *InMemoryStore {
	if seed == nil {
		seed = Mapping{}
	}
	return &InMemoryStore{mapping: seed.Clone()}
}

// Load implements MappingStore.Load. The seeded mapping is validated the same
// way FileStore validates a manually edited file.
func (s *InMemoryStore) Load() (Mapping, error) {
	if err := s.mapping.Validate(); err != nil {
		return nil, err
	}
	return s.mapping.Clone(), nil
}

// Save implements MappingStore.Save.
func (s *InMemoryStore) Save(m Mapping) error {
	s.mapping = m.Clone()
	return nil
}

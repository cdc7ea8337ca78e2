package lineup

import (
	"reflect"
	"testing"
)

func TestAllocate_bootstrap(t *testing.T) {
	got := Allocate(Mapping{}, []StreamPath{"A", "B", "C"})
	want := []Assignment{
		{Path: "A", Number: 1},
		{Path: "B", Number: 2},
		{Path: "C", Number: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Allocate: got %v, want %v", got, want)
	}
}

func TestAllocate_no_new_paths(t *testing.T) {
	if got := Allocate(Mapping{"A": 1}, nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestAllocate_continues_after_existing(t *testing.T) {
	got := Allocate(Mapping{"A": 1, "B": 2}, []StreamPath{"C"})
	want := []Assignment{{Path: "C", Number: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Allocate: got %v, want %v", got, want)
	}
}

func TestAllocate_never_backfills_gaps(t *testing.T) {
	// Manual edits can leave holes (2..149 here). They stay holes forever.
	got := Allocate(Mapping{"A": 1, "Z": 150}, []StreamPath{"C"})
	want := []Assignment{{Path: "C", Number: 151}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Allocate: got %v, want %v", got, want)
	}
}

func TestAllocate_batch_numbers_distinct_and_monotonic(t *testing.T) {
	existing := Mapping{"A": 5}
	got := Allocate(existing, []StreamPath{"B", "C", "D"})

	seen := make(map[ChannelNumber]bool)
	for _, a := range got {
		if a.Number <= existing.MaxNumber() {
			t.Errorf("assignment %v not above existing max %d", a, existing.MaxNumber())
		}
		if seen[a.Number] {
			t.Errorf("number %d assigned twice in one batch", a.Number)
		}
		seen[a.Number] = true
	}
}

func TestAllocate_deterministic(t *testing.T) {
	existing := Mapping{"A": 1, "B": 7}
	paths := []StreamPath{"C", "D", "E"}

	first := Allocate(existing, paths)
	second := Allocate(existing, paths)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical input produced different output: %v vs %v", first, second)
	}
}

func TestAllocate_order_decides_numbers(t *testing.T) {
	existing := Mapping{"A": 1}

	forward := Allocate(existing, []StreamPath{"B", "C"})
	reversed := Allocate(existing, []StreamPath{"C", "B"})

	if forward[0].Number != reversed[0].Number {
		t.Errorf("first discovered path should always get the next number")
	}
	if forward[0].Path == reversed[0].Path {
		t.Errorf("discovery order should decide which path gets which number")
	}
}

func TestAllocate_does_not_mutate_existing(t *testing.T) {
	existing := Mapping{"A": 1}
	_ = Allocate(existing, []StreamPath{"B"})

	if len(existing) != 1 || existing["A"] != 1 {
		t.Errorf("existing mapping was mutated: %v", existing)
	}
}

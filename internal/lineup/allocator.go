package lineup

// Allocate assigns channel numbers to stream paths that are absent from
// existing, in the given discovery order. Every new number is strictly
// greater than every number already in use, so gaps left by manual removal
// of entries are never reclaimed and a number, once retired, stays retired.
//
// Given the same existing mapping and the same ordered newPaths, the output
// is identical. existing is not modified.
func Allocate(existing Mapping, newPaths []StreamPath) []Assignment {
	if len(newPaths) == 0 {
		return nil
	}

	next := existing.MaxNumber() + 1
	if next < 1 {
		next = 1
	}

	out := make([]Assignment, 0, len(newPaths))
	for _, p := range newPaths {
		out = append(out, Assignment{Path: p, Number: next})
		next++
	}
	return out
}

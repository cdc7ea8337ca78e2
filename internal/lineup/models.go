package lineup

import "time"

// StreamPath is the stable token identifying a content source's location.
// It does not change when the channel's playable URL or auth token changes.
type StreamPath string

// ChannelNumber is a positive integer identifier. Once a stream path has
// been given a number, automated logic never changes or reuses it.
type ChannelNumber int

// Mapping is the stream-path to channel-number assignment table.
// It is injective: no two stream paths share a number.
type Mapping map[StreamPath]ChannelNumber

// MaxNumber returns the highest number currently in use, or 0 if the
// mapping is empty.
func (m Mapping) MaxNumber() ChannelNumber {
	var max ChannelNumber
	for _, n := range m {
		if n > max {
			max = n
		}
	}
	return max
}

// Clone returns an independent copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for p, n := range m {
		out[p] = n
	}
	return out
}

// Assignment is one freshly minted (stream path, channel number) pair.
type Assignment struct {
	Path   StreamPath
	Number ChannelNumber
}

// Channel is a single discovered channel enriched with its persistent number.
// This also matches the records emitted in the JSON playlist artifact.
type Channel struct {
	Number     ChannelNumber `json:"channel_number"`
	Name       string        `json:"name"`
	Logo       string        `json:"logo"`
	Group      string        `json:"group"`
	URL        string        `json:"url"`
	StreamPath StreamPath    `json:"stream_path"`
}

// Lineup is the published result of one reconcile run: every channel seen in
// that run carrying its channel number, sorted by number ascending.
type Lineup struct {
	GeneratedAt time.Time `json:"generated_at"`
	Channels    []Channel `json:"channels"`
}

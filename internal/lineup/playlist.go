package lineup

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildM3U renders the lineup as an extended M3U playlist. Each entry carries
// the tvg attributes IPTV players use for guide matching, including tvg-chno
// with the channel's persistent number. Commas in channel names are replaced
// because the EXTINF display name is comma-delimited.
func BuildM3U(l *Lineup) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "# Generated at %s\n\n", l.GeneratedAt.Format("Mon Jan  2 15:04:05 2006"))

	for _, ch := range l.Channels {
		name := strings.ReplaceAll(ch.Name, ",", " ")
		fmt.Fprintf(&b, "#EXTINF:-1 tvg-id=%q tvg-name=%q tvg-chno=\"%d\" tvg-logo=%q group-title=%q,%s\n",
			name, name, ch.Number, ch.Logo, ch.Group, name)
		b.WriteString(ch.URL)
		b.WriteString("\n")
	}

	return b.String()
}

// MarshalPlaylistJSON renders the lineup as the JSON playlist artifact:
// the generation timestamp plus the channel records, already sorted by
// channel number, indented for hand inspection.
func MarshalPlaylistJSON(l *Lineup) ([]byte, error) {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode playlist: %w", err)
	}
	return append(data, '\n'), nil
}

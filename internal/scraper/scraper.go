// Package scraper discovers channels from the upstream directory page and
// resolves each channel's playable stream URL.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"channel-lineup/internal/lineup"
)

// DefaultWorkers is the default number of concurrent player-page fetches.
const DefaultWorkers = 75

// DefaultUserAgent is sent on every upstream request; the upstream serves a
// different (unusable) page to non-browser agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// m3u8Pattern matches a tokenized HLS URL embedded in a player page.
var m3u8Pattern = regexp.MustCompile(`https?://[^\s"'<>]+\.m3u8[^\s"'<>]*`)

// Config carries the upstream endpoints and fetch tuning for a Scraper.
type Config struct {
	// SourceURL is the channel directory page.
	SourceURL string
	// PlayerURLTemplate is the per-channel player page; it must contain a
	// single %s verb that receives the stream path.
	PlayerURLTemplate string
	// Workers bounds concurrent player-page fetches; <= 0 means DefaultWorkers.
	Workers int
	// Timeout applies to each upstream request; <= 0 means 30s.
	Timeout time.Duration
	// UserAgent overrides DefaultUserAgent when non-empty.
	UserAgent string
}

// Scraper fetches the upstream channel directory and resolves stream URLs.
type Scraper struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

// New returns a Scraper for the given upstream configuration.
func New(cfg Config, log *slog.Logger) *Scraper {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Scraper{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// Discover fetches the directory page, extracts the channel cards, and
// resolves each channel's playable URL. Channels whose player page yields no
// stream URL are dropped. The returned slice preserves the directory page's
// order, which is the discovery order fed to number allocation.
func (s *Scraper) Discover(ctx context.Context) ([]lineup.Channel, error) {
	body, err := s.fetch(ctx, s.cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch channel directory: %w", err)
	}

	cards, err := parseChannelCards(strings.NewReader(body), s.cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse channel directory: %w", err)
	}
	s.log.Info("channel directory fetched", slog.Int("channels", len(cards)))

	resolved := make([]lineup.Channel, len(cards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, card := range cards {
		g.Go(func() error {
			url, err := s.resolveStreamURL(gctx, card.StreamPath)
			if err != nil {
				s.log.Warn("no stream resolved",
					slog.String("name", card.Name),
					slog.String("stream_path", string(card.StreamPath)),
					slog.String("error", err.Error()))
				return nil
			}
			card.URL = url
			resolved[i] = card
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	channels := make([]lineup.Channel, 0, len(resolved))
	for _, ch := range resolved {
		if ch.URL != "" {
			channels = append(channels, ch)
		}
	}
	s.log.Info("scrape complete",
		slog.Int("resolved", len(channels)),
		slog.Int("discovered", len(cards)))
	return channels, nil
}

// resolveStreamURL fetches the channel's player page and extracts the first
// tokenized m3u8 URL from it.
func (s *Scraper) resolveStreamURL(ctx context.Context, path lineup.StreamPath) (string, error) {
	body, err := s.fetch(ctx, fmt.Sprintf(s.cfg.PlayerURLTemplate, path))
	if err != nil {
		return "", err
	}
	url := m3u8Pattern.FindString(body)
	if url == "" {
		return "", fmt.Errorf("no m3u8 url in player page")
	}
	return url, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Referer", s.cfg.SourceURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseChannelCards walks the directory page and extracts one channel per
// div.channel-card element. The card's data attributes carry the stream path,
// title, and group tags; the nested img supplies the logo and a fallback
// title. Relative logo URLs are resolved against baseURL.
func parseChannelCards(r io.Reader, baseURL string) ([]lineup.Channel, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var cards []lineup.Channel
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "channel-card") {
			if card, ok := channelFromCard(n, baseURL, len(cards)); ok {
				cards = append(cards, card)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return cards, nil
}

func channelFromCard(n *html.Node, baseURL string, index int) (lineup.Channel, bool) {
	streamPath := attrValue(n, "data-stream")
	if streamPath == "" {
		return lineup.Channel{}, false
	}

	title := attrValue(n, "data-title")
	group := attrValue(n, "data-tags")
	if group == "" {
		group = "Uncategorized"
	}

	var logo string
	if img := findElement(n, "img"); img != nil {
		logo = attrValue(img, "src")
		if title == "" {
			title = attrValue(img, "alt")
		}
	}
	if title == "" {
		title = fmt.Sprintf("Channel %d", index+1)
	}
	if logo != "" && !strings.HasPrefix(logo, "http") {
		logo = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(logo, "/")
	}

	return lineup.Channel{
		Name:       title,
		Logo:       logo,
		Group:      group,
		StreamPath: lineup.StreamPath(streamPath),
	}, true
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

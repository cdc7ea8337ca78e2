package lineup

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"channel-lineup/internal/platform/metrics"
)

const (
	m3uContentType  = "audio/x-mpegurl"
	jsonContentType = "application/json"
)

// Source provides the most recently published lineup and accepts refresh
// requests. The refresher implements it.
type Source interface {
	// Current returns the lineup from the last successful run. ok is false
	// until a run has completed.
	Current() (*Lineup, bool)

	// RequestRefresh triggers a scrape-and-reconcile run asynchronously.
	// It returns immediately; a run already in progress absorbs the request.
	RequestRefresh()
}

// Handler exposes the lineup HTTP endpoints using go-chi.
type Handler struct {
	src     Source
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler over the given Source. Metrics may be nil to
// disable metric recording (e.g. in tests).
func NewHandler(src Source, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{src: src, log: log, metrics: m}
}

// GetPlaylistM3U handles GET /playlist.m3u.
func (h *Handler) GetPlaylistM3U(w http.ResponseWriter, r *http.Request) {
	l, ok := h.src.Current()
	if !ok {
		h.noLineupYet(w)
		return
	}

	w.Header().Set("Content-Type", m3uContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(BuildM3U(l)))
}

// GetPlaylistJSON handles GET /playlist.json.
func (h *Handler) GetPlaylistJSON(w http.ResponseWriter, r *http.Request) {
	l, ok := h.src.Current()
	if !ok {
		h.noLineupYet(w)
		return
	}

	data, err := MarshalPlaylistJSON(l)
	if err != nil {
		h.log.Error("encode playlist", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetLineup handles GET /lineup: the bare channel records as a JSON array.
func (h *Handler) GetLineup(w http.ResponseWriter, r *http.Request) {
	l, ok := h.src.Current()
	if !ok {
		h.noLineupYet(w)
		return
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(l.Channels); err != nil {
		h.log.Debug("encode lineup", slog.String("error", err.Error()))
	}
}

// Refresh handles POST /refresh: kicks off a run in the background.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.src.RequestRefresh()
	h.log.Info("manual refresh requested")
	w.WriteHeader(http.StatusAccepted)
	if h.metrics != nil {
		h.metrics.IncRefreshRequests()
	}
}

func (h *Handler) noLineupYet(w http.ResponseWriter) {
	http.Error(w, "no lineup published yet", http.StatusServiceUnavailable)
}

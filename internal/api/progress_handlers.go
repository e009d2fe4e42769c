package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

// ProgressSource reports the live state of the current run.
type ProgressSource interface {
	Snapshot() crawler.ProgressSnapshot
}

// RunHistory reports the most recently finished run.
type RunHistory interface {
	Last() (crawler.RunSummary, bool)
}

// DatasetSource returns the stored TSV dataset of a run.
type DatasetSource interface {
	Dataset(runID string) ([]byte, bool)
}

// ProgressHandler exposes read-only run progress endpoints.
type ProgressHandler struct {
	progress ProgressSource
	history  RunHistory
	datasets DatasetSource
	logger   *zap.Logger
}

// NewProgressHandler wires the progress source, run history, dataset store,
// and logger. Any source may be nil; its endpoint then answers 503.
func NewProgressHandler(progress ProgressSource, history RunHistory, datasets DatasetSource, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{progress: progress, history: history, datasets: datasets, logger: logger}
}

// GetProgress handles GET /progress and returns the current snapshot.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	if h.progress == nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	writeJSON(w, http.StatusOK, h.progress.Snapshot())
}

// GetLastRun handles GET /runs/last. It returns 404 until a run has finished.
func (h *ProgressHandler) GetLastRun(w http.ResponseWriter, _ *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "run history unavailable")
		return
	}
	summary, ok := h.history.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no finished run")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetDataset handles GET /runs/{run_id}/dataset and streams the run's TSV.
func (h *ProgressHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	if h.datasets == nil {
		writeError(w, http.StatusServiceUnavailable, "datasets unavailable")
		return
	}
	runID := chi.URLParam(r, "run_id")
	body, ok := h.datasets.Dataset(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "dataset not found")
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write dataset response", zap.String("run_id", runID), zap.Error(err))
	}
}

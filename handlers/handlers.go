package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/db"
	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/logger"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/summary"
	"github.com/nijaru/yt-summary/utils"
	"github.com/nijaru/yt-summary/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	pingTimeout      = 5 * time.Second
	maxBodyBytes     = 1 << 16
)

type Summarizer interface {
	Run(ctx context.Context, url string) summary.ResultEnvelope
}

type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	GetRun(ctx context.Context, id string) (*db.Run, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	summarizer Summarizer
	runs       RunStore
	backend    Pinger
	model      string
	limiter    *rate.Limiter
	inflight   *semaphore.Weighted
	log        *logrus.Logger
}

// New wires the HTTP surface. runs may be nil when the ledger is disabled.
func New(cfg *config.Config, s Summarizer, runs RunStore, backend Pinger, log *logrus.Logger) *Handler {
	return &Handler{
		summarizer: s,
		runs:       runs,
		backend:    backend,
		model:      cfg.LLM.Model,
		limiter:    rate.NewLimiter(rate.Every(cfg.RateLimitInterval), cfg.RateLimit),
		inflight:   semaphore.NewWeighted(int64(cfg.MaxInflight)),
		log:        log,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/summarize", middleware.RateLimit(h.limiter)(http.HandlerFunc(h.Summarize)))
	mux.HandleFunc("GET /api/runs", h.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /health", h.Health)

	return middleware.Chain(mux,
		middleware.Recovery(h.log),
		middleware.RequestID(),
		middleware.Logging(h.log),
	)
}

func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Summarize"
	entry := h.log.WithField("request_id", logger.RequestID(r.Context()))

	url, err := readURL(w, r)
	if err != nil {
		respondError(w, entry, apperrors.InvalidInput(op, err, "Invalid request body"))
		return
	}

	if err := validation.ValidateURL(url); err != nil {
		respondError(w, entry.WithField("url", url), apperrors.InvalidInput(op, err, err.Error()))
		return
	}

	if !h.inflight.TryAcquire(1) {
		entry.WithField("url", url).Warn("Too many summarizations in flight")
		utils.HandleError(w, "Too many requests in progress", http.StatusTooManyRequests)
		return
	}
	defer h.inflight.Release(1)

	env := h.summarizer.Run(r.Context(), url)
	if r.Context().Err() != nil {
		entry.WithError(r.Context().Err()).Warn("Client went away before response")
		return
	}

	status := http.StatusOK
	if !env.IsSuccess() {
		status = env.Code
	}
	utils.RespondWithJSON(w, status, env)
}

// respondError writes err as a JSON error using the AppError's status.
// Errors without one are reported as internal.
func respondError(w http.ResponseWriter, entry *logrus.Entry, err error) {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = apperrors.Internal("", err, http.StatusText(http.StatusInternalServerError))
	}

	entry = entry.WithError(err).WithField("status", appErr.Code)
	if appErr.Code >= http.StatusInternalServerError {
		entry.Error(appErr.Message)
	} else {
		entry.Warn(appErr.Message)
	}
	utils.HandleError(w, appErr.Message, appErr.Code)
}

func readURL(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return r.FormValue("url"), nil
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", err
	}
	return body.URL, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	backendUp := true
	if err := h.backend.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("Model backend unavailable")
		backendUp = false
	}

	status := "ok"
	if !backendUp {
		status = "degraded"
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"model":     h.model,
		"backend":   backendUp,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

var errLedgerDisabled = stderrors.New("run ledger disabled")

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ListRuns"
	entry := h.log.WithField("request_id", logger.RequestID(r.Context()))

	if h.runs == nil {
		respondError(w, entry, apperrors.NotFound(op, errLedgerDisabled, "Run log is disabled"))
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, entry, apperrors.InvalidInput(op, err, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, entry, apperrors.Internal(op, err, "Failed to list runs"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.GetRun"
	entry := h.log.WithField("request_id", logger.RequestID(r.Context()))

	if h.runs == nil {
		respondError(w, entry, apperrors.NotFound(op, errLedgerDisabled, "Run log is disabled"))
		return
	}

	id := r.PathValue("id")
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			err = apperrors.Internal(op, err, "Failed to load run")
		}
		respondError(w, entry.WithField("run_id", id), err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, run)
}

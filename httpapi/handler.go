package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/events"
	"github.com/arloliu/vario/internal/logging"
	"github.com/arloliu/vario/types"
)

const (
	// DefaultRetryAfter is the Retry-After value sent with 503 responses.
	DefaultRetryAfter = time.Second

	// maxBodyBytes caps request bodies.
	maxBodyBytes = 1 << 20

	// IdempotencyKeyHeader carries the client event id for published events.
	IdempotencyKeyHeader = "Idempotency-Key"
)

// Engine is the subset of *vario.Service served over HTTP.
type Engine interface {
	CreateExperiment(ctx context.Context, exp *vario.Experiment) (*vario.Experiment, error)
	ChooseVariant(ctx context.Context, experimentID, token string) (vario.Choice, error)
	RecordImpression(ctx context.Context, experimentID, variantID string) error
	RecordConversion(ctx context.Context, experimentID, variantID string) error
	GetStats(ctx context.Context, experimentID string) (*vario.Experiment, error)
}

var (
	_ Engine         = (*vario.Service)(nil)
	_ EventPublisher = (*events.Publisher)(nil)
)

// EventPublisher publishes events for asynchronous recording.
type EventPublisher interface {
	PublishImpression(ctx context.Context, eventID, experimentID, variantID string) (bool, error)
	PublishConversion(ctx context.Context, eventID, experimentID, variantID string) (bool, error)
}

// Option configures the handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger types.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRetryAfter overrides the Retry-After value of 503 responses.
func WithRetryAfter(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.retryAfter = d
		}
	}
}

// WithEventPublisher routes impression and conversion requests through JetStream.
func WithEventPublisher(p EventPublisher) Option {
	return func(h *Handler) {
		h.publisher = p
	}
}

// Handler serves the HTTP API.
type Handler struct {
	engine     Engine
	publisher  EventPublisher
	logger     types.Logger
	retryAfter time.Duration
	router     chi.Router
}

// New builds the HTTP handler for engine.
//
// Example:
//
//	h := httpapi.New(svc, httpapi.WithLogger(logger))
//	http.ListenAndServe(":8080", h)
func New(engine Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:     engine,
		logger:     logging.NewNop(),
		retryAfter: DefaultRetryAfter,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.handleHealth)
	r.Route("/experiments", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/choose", h.handleChoose)
			r.Get("/stats", h.handleStats)
			r.Post("/variants/{variantID}/impressions", h.handleImpression)
			r.Post("/variants/{variantID}/conversions", h.handleConversion)
		})
	})
	h.router = r

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type chooseRequest struct {
	Token string `json:"token"`
}

type chooseResponse struct {
	VariantID string `json:"variantId"`
	Token     string `json:"token"`
}

type variantStats struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Impressions uint64  `json:"impressions"`
	Conversions uint64  `json:"conversions"`
	Weight      float64 `json:"weight"`
	Rate        float64 `json:"rate"`
}

type statsResponse struct {
	ExperimentID string         `json:"experimentId"`
	Variants     []variantStats `json:"variants"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var exp vario.Experiment
	if err := decodeBody(w, r, &exp); err != nil {
		h.writeError(w, r, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	created, err := h.engine.CreateExperiment(r.Context(), &exp)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req chooseRequest
	// An empty body means a first-time visitor.
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	choice, err := h.engine.ChooseVariant(r.Context(), chi.URLParam(r, "id"), req.Token)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, chooseResponse{VariantID: choice.VariantID, Token: choice.Token})
}

func (h *Handler) handleImpression(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.engine.RecordImpression, publishFunc(h.publisher, false))
}

func (h *Handler) handleConversion(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.engine.RecordConversion, publishFunc(h.publisher, true))
}

func (h *Handler) handleEvent(
	w http.ResponseWriter,
	r *http.Request,
	record func(ctx context.Context, experimentID, variantID string) error,
	publish func(ctx context.Context, eventID, experimentID, variantID string) (bool, error),
) {
	experimentID := chi.URLParam(r, "id")
	variantID := chi.URLParam(r, "variantID")

	if publish != nil {
		// Malformed ids can never be recorded, so they are rejected before
		// publishing. Well-formed unknown ids are accepted and dropped by the
		// consumer.
		if !types.ValidID(experimentID) || !types.ValidID(variantID) {
			h.writeError(w, r, http.StatusNotFound, vario.ErrNotFound)
			return
		}

		if _, err := publish(r.Context(), r.Header.Get(IdempotencyKeyHeader), experimentID, variantID); err != nil {
			h.writeError(w, r, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusAccepted)

		return
	}

	if err := record(r.Context(), experimentID, variantID); err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	exp, err := h.engine.GetStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	resp := statsResponse{
		ExperimentID: exp.ID,
		Variants:     make([]variantStats, len(exp.Variants)),
	}
	for i, v := range exp.Variants {
		resp.Variants[i] = variantStats{
			ID:          v.ID,
			Name:        v.Name,
			Impressions: v.Impressions,
			Conversions: v.Conversions,
			Weight:      v.Weight,
			Rate:        v.Rate(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(max(1, int(h.retryAfter.Round(time.Second)/time.Second))))
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"requestId", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}

	writeJSON(w, status, errorResponse{Error: publicMessage(status, err)})
}

// publicMessage returns the error text sent to clients. Lookups and server
// failures get a fixed text; the wrapped error stays in the logs.
func publicMessage(status int, err error) string {
	switch {
	case status == http.StatusNotFound:
		return "not found"
	case status == http.StatusServiceUnavailable:
		return "store unavailable"
	case status >= http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vario.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vario.ErrNoVariants) && !errors.Is(err, vario.ErrInvalidExperiment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vario.ErrInvalidExperiment), errors.Is(err, events.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, vario.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, vario.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func publishFunc(p EventPublisher, conversion bool) func(context.Context, string, string, string) (bool, error) {
	if p == nil {
		return nil
	}
	if conversion {
		return p.PublishConversion
	}

	return p.PublishImpression
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

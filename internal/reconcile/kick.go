// ABOUTME: HTTP kick endpoint that schedules reconcile passes, and the client that calls it.
// ABOUTME: Kicks are rate limited; the coalescing queue absorbs whatever gets through.

package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HandlerConfig configures the kick HTTP handler.
type HandlerConfig struct {
	Reconciler *Reconciler
	Logger     *slog.Logger

	// KickRate and KickBurst bound accepted kicks per second. Zero rate
	// disables limiting.
	KickRate  float64
	KickBurst int
}

// Handler serves the reconciler's HTTP surface.
type Handler struct {
	reconciler *Reconciler
	limiter    *rate.Limiter
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewHandler builds the HTTP handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.KickRate > 0 {
		limit = rate.Limit(cfg.KickRate)
	}
	burst := cfg.KickBurst
	if burst <= 0 {
		burst = 1
	}

	h := &Handler{
		reconciler: cfg.Reconciler,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /kick/{id}", h.handleKick)
	h.mux.HandleFunc("GET /instances", h.handleInstances)
	h.mux.HandleFunc("GET /instances/{id}", h.handleInstance)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type kickResponse struct {
	ID       string    `json:"id"`
	Accepted bool      `json:"accepted"`
	Instance *Instance `json:"instance,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func (h *Handler) handleKick(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !ValidID(id) {
		writeJSON(w, http.StatusBadRequest, kickResponse{ID: id, Error: "invalid instance id"})
		return
	}
	if !h.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, kickResponse{ID: id, Error: "too many kicks"})
		return
	}

	future := h.reconciler.Kick(id)
	h.logger.Debug("kick accepted", "instance", id)

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, kickResponse{ID: id, Accepted: true})
		return
	}

	inst, err := future.Wait(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, kickResponse{ID: id, Accepted: true, Instance: inst})
	case errors.Is(err, ErrInstanceNotFound):
		writeJSON(w, http.StatusNotFound, kickResponse{ID: id, Accepted: true, Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The pass keeps running; only this waiter gave up.
		writeJSON(w, http.StatusAccepted, kickResponse{ID: id, Accepted: true, Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, kickResponse{ID: id, Accepted: true, Instance: inst, Error: err.Error()})
	}
}

func (h *Handler) handleInstances(w http.ResponseWriter, r *http.Request) {
	insts, err := h.reconciler.Records().List()
	if err != nil {
		h.logger.Warn("listing records", "error", err)
	}
	if insts == nil {
		insts = []*Instance{}
	}
	writeJSON(w, http.StatusOK, insts)
}

func (h *Handler) handleInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.reconciler.Records().Read(r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, inst)
	case errors.Is(err, ErrInstanceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"pending": h.reconciler.Pending(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Kicker notifies a remote reconciler that an instance changed.
type Kicker struct {
	baseURL string
	client  *http.Client
}

// NewKicker creates a client for the reconciler at baseURL. A bare
// host:port gets an http scheme.
func NewKicker(baseURL string) *Kicker {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Kicker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

// Kick schedules a pass for id. With wait it blocks until the pass ends
// and returns the resulting instance.
func (k *Kicker) Kick(ctx context.Context, id string, wait bool) (*Instance, error) {
	u := k.baseURL + "/kick/" + url.PathEscape(id)
	if wait {
		u += "?wait=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kick %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading kick response: %w", err)
	}
	var kr kickResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, fmt.Errorf("kick %s: status %d: %s", id, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		if kr.Error != "" && wait {
			return kr.Instance, fmt.Errorf("kick %s: %s", id, kr.Error)
		}
		return kr.Instance, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	default:
		return kr.Instance, fmt.Errorf("kick %s: status %d: %s", id, resp.StatusCode, kr.Error)
	}
}

// Instances lists every record known to the remote reconciler.
func (k *Kicker) Instances(ctx context.Context) ([]*Instance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/instances", nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing instances: status %d", resp.StatusCode)
	}
	var insts []*Instance
	if err := json.NewDecoder(resp.Body).Decode(&insts); err != nil {
		return nil, fmt.Errorf("decoding instances: %w", err)
	}
	return insts, nil
}

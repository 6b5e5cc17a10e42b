package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// Reader is the persistence read surface the API exposes.
type Reader interface {
	Ping(ctx context.Context) error
	ListPools(ctx context.Context, limit int) ([]model.Pool, error)
	GetToken(ctx context.Context, address string) (model.Token, bool, error)
	ListCandles(ctx context.Context, interval model.Interval, tokenAddress string, limit int) ([]model.Candle, error)
	ListSwapsByPool(ctx context.Context, poolID string, limit int) ([]model.SwapRecord, error)
	GetSyncState(ctx context.Context, poolManagerAddress string) (model.SyncState, bool, error)
}

// API holds the query handlers.
type API struct {
	reader  Reader
	manager string
	logger  *zap.Logger
}

func NewAPI(reader Reader, poolManagerAddress string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{reader: reader, manager: strings.ToLower(poolManagerAddress), logger: logger}
}

// Router builds the chi route tree.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", a.Healthz)
	r.Route("/api", func(api chi.Router) {
		api.Get("/sync", a.SyncState)
		api.Get("/pools", a.Pools)
		api.Get("/pools/{poolID}/swaps", a.PoolSwaps)
		api.Get("/tokens/{address}", a.Token)
		api.Get("/candles/{interval}/{address}", a.Candles)
	})
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.reader.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) SyncState(w http.ResponseWriter, r *http.Request) {
	state, ok, err := a.reader.GetSyncState(r.Context(), a.manager)
	if err != nil {
		a.serverError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no sync state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) Pools(w http.ResponseWriter, r *http.Request) {
	pools, err := a.reader.ListPools(r.Context(), queryLimit(r))
	if err != nil {
		a.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (a *API) PoolSwaps(w http.ResponseWriter, r *http.Request) {
	poolID := strings.ToLower(chi.URLParam(r, "poolID"))
	swaps, err := a.reader.ListSwapsByPool(r.Context(), poolID, queryLimit(r))
	if err != nil {
		a.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, swaps)
}

func (a *API) Token(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(chi.URLParam(r, "address"))
	token, ok, err := a.reader.GetToken(r.Context(), address)
	if err != nil {
		a.serverError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (a *API) Candles(w http.ResponseWriter, r *http.Request) {
	interval, err := model.ParseInterval(chi.URLParam(r, "interval"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "interval must be minute, hour, or day")
		return
	}
	address := strings.ToLower(chi.URLParam(r, "address"))

	candles, err := a.reader.ListCandles(r.Context(), interval, address, queryLimit(r))
	if err != nil {
		a.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candles)
}

func (a *API) serverError(w http.ResponseWriter, err error) {
	a.logger.Error("query failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 100
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

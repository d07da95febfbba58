package master

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RegisterRequest is what a range posts when it comes up.
type RegisterRequest struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	Arena        string `json:"arena"`
	Observers    int    `json:"observers"`
	ActiveArrows int    `json:"activeArrows"`
	Version      string `json:"version"`
}

type RegisterResponse struct {
	ID string `json:"id"`
}

type HeartbeatRequest struct {
	ID           string `json:"id"`
	Observers    int    `json:"observers"`
	ActiveArrows int    `json:"activeArrows"`
}

const maxRequestBody = 1 << 16 // 64 KB

// Handler routes the directory endpoints.
func Handler(reg *Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ranges", ListRanges(reg))
	mux.HandleFunc("POST /ranges/register", RegisterRange(reg))
	mux.HandleFunc("POST /ranges/heartbeat", Heartbeat(reg))
	mux.HandleFunc("GET /health", Health())
	return mux
}

func ListRanges(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		ranges := reg.List()
		if arena := r.URL.Query().Get("arena"); arena != "" {
			ranges = reg.ListArena(arena)
		}
		if err := json.NewEncoder(w).Encode(ranges); err != nil {
			log.Warn().Err(err).Msg("list encode error")
		}
	}
}

func RegisterRange(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Address == "" {
			http.Error(w, `{"error":"name and address required"}`, http.StatusBadRequest)
			return
		}

		id := reg.Register(RangeInfo{
			Name:         req.Name,
			Address:      req.Address,
			Arena:        req.Arena,
			Observers:    req.Observers,
			ActiveArrows: req.ActiveArrows,
			Version:      req.Version,
		})

		log.Info().Str("name", req.Name).Str("address", req.Address).Str("id", id).Msg("registered range")

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(RegisterResponse{ID: id})
	}
}

func Heartbeat(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req HeartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}

		if !reg.Heartbeat(req.ID, req.Observers, req.ActiveArrows) {
			http.Error(w, `{"error":"unknown range"}`, http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

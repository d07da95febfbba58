package core

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
)

// ArrowStatus is a read-only view of one live arrow.
type ArrowStatus struct {
	ID          uint64     `json:"id"`
	Phase       string     `json:"phase"`
	Position    mgl64.Vec3 `json:"position"`
	Velocity    mgl64.Vec3 `json:"velocity"`
	PointIndex  int        `json:"pointIndex"`
	PointCount  int        `json:"pointCount"`
	Moving      bool       `json:"moving"`
	EffectID    uint64     `json:"effectId,omitempty"`
	ParentID    uint64     `json:"parentId,omitempty"`
	DestroyInMs int64      `json:"destroyInMs,omitempty"`
}

// StatusSource is what the status endpoints read from.
type StatusSource interface {
	ArrowStatuses() []ArrowStatus
}

func statusOf(a *ArrowController) ArrowStatus {
	st := a.State()
	return ArrowStatus{
		ID:          uint64(a.ID()),
		Phase:       a.Phase().String(),
		Position:    st.Position,
		Velocity:    st.Velocity,
		PointIndex:  st.PointIndex,
		PointCount:  len(a.Points()),
		Moving:      st.Moving,
		EffectID:    uint64(a.EffectID()),
		ParentID:    uint64(a.ParentID()),
		DestroyInMs: a.DestroyIn().Milliseconds(),
	}
}

// refreshStatus publishes the tick's arrow views for other goroutines.
func (s *Server) refreshStatus() {
	out := make([]ArrowStatus, 0, len(s.arrows))
	for _, id := range s.arrowIDs() {
		out = append(out, statusOf(s.arrows[id].ctrl))
	}

	s.mu.Lock()
	s.status = out
	s.mu.Unlock()
}

// ArrowStatuses returns the views captured at the end of the last tick,
// ordered by id.
func (s *Server) ArrowStatuses() []ArrowStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.status)
}

// StatusHandler serves the read-only status endpoints.
func StatusHandler(src StatusSource) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /arrows", ListArrows(src))
	mux.HandleFunc("GET /arrows/{id}", GetArrow(src))
	mux.HandleFunc("GET /health", Health())
	return mux
}

func ListArrows(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(src.ArrowStatuses()); err != nil {
			log.Warn().Err(err).Msg("arrow list encode error")
		}
	}
}

func GetArrow(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
			return
		}

		statuses := src.ArrowStatuses()
		i := slices.IndexFunc(statuses, func(a ArrowStatus) bool { return a.ID == id })
		if i < 0 {
			http.Error(w, `{"error":"unknown arrow"}`, http.StatusNotFound)
			return
		}
		if err := json.NewEncoder(w).Encode(statuses[i]); err != nil {
			log.Warn().Err(err).Uint64("arrow", id).Msg("arrow encode error")
		}
	}
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}


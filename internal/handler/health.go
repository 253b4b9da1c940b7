package handler

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"marketbrief/internal/httputil"
)

// HealthHandler answers liveness checks.
type HealthHandler struct {
	pool *pgxpool.Pool
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(pool *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

// Check handles GET /health. Reports degraded when the database does not
// answer a ping, but still returns 200; the process itself is alive.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"time":   time.Now(),
	})
}

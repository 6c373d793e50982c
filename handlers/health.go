package handlers

import (
	"context"
	"net/http"
	"time"

	"licensegate/logger"
	"licensegate/models"
)

// Pinger is satisfied by *database.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// Health reports whether the datastore answers
// @Summary Health check
// @Tags ops
// @Produce json
// @Success 200 {object} models.Result
// @Failure 503 {object} models.Result
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Database: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
	if err := h.db.Ping(ctx); err != nil {
		logger.WithFields(requestFields(r, map[string]interface{}{"error": err.Error()})).Error("Health check failed")
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		writeResult(w, http.StatusServiceUnavailable, models.Failure(models.ReasonServerError, resp))
		return
	}
	writeResult(w, http.StatusOK, models.Success(resp))
}

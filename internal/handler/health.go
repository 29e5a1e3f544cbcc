package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/queryfed/queryfed/internal/connector"
	"github.com/queryfed/queryfed/internal/models"
)

const version = "1.0.0"

// Pinger reports connectivity of one named dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health, probing every registered database and
// the document index. Degraded dependencies turn the status 503 so load
// balancers can see it.
type HealthHandler struct {
	registry  *connector.Registry
	docSearch Pinger
}

func NewHealthHandler(registry *connector.Registry, docSearch Pinger) *HealthHandler {
	return &HealthHandler{registry: registry, docSearch: docSearch}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	status := "healthy"

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, conn := range h.registry.All() {
		if err := conn.Ping(ctx); err != nil {
			checks["db:"+conn.DatabaseID()] = "unavailable: " + err.Error()
			status = "degraded"
		} else {
			checks["db:"+conn.DatabaseID()] = "ok"
		}
	}

	if h.docSearch != nil {
		if err := h.docSearch.Ping(ctx); err != nil {
			checks["documents"] = "unavailable: " + err.Error()
			status = "degraded"
		} else {
			checks["documents"] = "ok"
		}
	} else {
		checks["documents"] = "disabled"
	}

	code := http.StatusOK
	if status == "degraded" {
		code = http.StatusServiceUnavailable
	}
	models.WriteJSON(w, code, models.HealthResponse{
		Status:  status,
		Version: version,
		Checks:  checks,
	})
}

package handler

import (
	"net/http"

	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

type Health struct {
	service string
	log     logger.Logger
}

func NewHealth(service string, log logger.Logger) *Health {
	return &Health{service: service, log: log}
}

// HealthCheck godoc
// @Summary      Health check
// @Description  Reports whether the service is up and which composition answered
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Health) HealthCheck(w http.ResponseWriter, r *http.Request) {
	payload := envelope{
		"status":      "available",
		"system_info": map[string]string{"service-name": h.service},
	}

	if err := writeJSON(w, http.StatusOK, payload, nil); err != nil {
		h.log.Error(wrap.WithAction(r.Context(), "health_check"), "healthcheck response failed", err)
	}
}

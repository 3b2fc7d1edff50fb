package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// breakerReporter is implemented by stores wrapped in a circuit breaker.
type breakerReporter interface {
	State() gobreaker.State
}

type HealthHandler struct {
	store Pinger
	log   logrus.FieldLogger
}

func NewHealthHandler(store Pinger, log logrus.FieldLogger) *HealthHandler {
	return &HealthHandler{store: store, log: log}
}

// HealthCheck always answers 200 while the process serves requests; the store state is informational.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	storeStatus := "ok"

	if h.store != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.store.Ping(pingCtx); err != nil {
			h.log.WithError(err).Warn("Store ping failed")
			storeStatus = "unavailable"
		}
	}

	body := gin.H{
		"status":    "ok",
		"message":   "Planboard is running",
		"store":     storeStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if b, ok := h.store.(breakerReporter); ok {
		body["breaker"] = b.State().String()
	}

	c.JSON(http.StatusOK, body)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/core"
	"github.com/BarkinBalci/eventcore/internal/dto"
	ingesthttp "github.com/BarkinBalci/eventcore/internal/ingest/http"
)

// Handler is the control-plane HTTP surface: a producer endpoint backed
// directly by the pipeline, a health check and a Prometheus scrape
// endpoint, nothing else.
type Handler struct {
	producer *ingesthttp.Producer
	registry *prometheus.Registry
	router   *gin.Engine
	log      *zap.Logger
}

// NewHandler wires routes against producer and registry.
func NewHandler(producer *ingesthttp.Producer, registry *prometheus.Registry, log *zap.Logger) *Handler {
	h := &Handler{
		producer: producer,
		registry: registry,
		router:   gin.Default(),
		log:      log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.POST("/events", h.publishEvent)
	h.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) publishEvent(c *gin.Context) {
	var req dto.PublishEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("invalid event request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	event, err := h.producer.Submit(c.Request.Context(), req.ClientID, req.UUID)
	if err != nil {
		status := http.StatusInternalServerError
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			switch coreErr.Kind {
			case core.KindShutdown:
				status = http.StatusServiceUnavailable
			case core.KindConcurrencyViolation, core.KindInternal:
				status = http.StatusInternalServerError
			case core.KindDownstreamError:
				status = http.StatusBadGateway
			case core.KindOverflow:
				status = http.StatusTooManyRequests
			}
		}
		h.log.Warn("event rejected", zap.Error(err), zap.Int64("client_id", req.ClientID))
		c.JSON(status, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.PublishEventResponse{
		ClientID:  event.ClientID,
		UUID:      event.UUID,
		CreatedAt: event.CreatedAt,
	})
}

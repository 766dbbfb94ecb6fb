package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"rice-quality-analyzer/internal/worker"
)

// StatsSource reports the analysis event tally.
type StatsSource interface {
	Snapshot() worker.AnalysisStats
}

// HealthInfo describes the running process. Redis, MQConn and Stats are nil when
// the corresponding feature is disabled.
type HealthInfo struct {
	Name      string
	Env       string
	Provider  string
	Model     string
	StartedAt time.Time
	Redis     *redis.Client
	MQConn    *amqp.Connection
	Stats     StatsSource
}

type HealthHandler struct {
	info HealthInfo
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Enabled bool   `json:"enabled"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	redisStatus := h.checkRedis(ctx)
	rmqStatus := h.checkRabbitMQ()

	statusCode := http.StatusOK
	if !redisStatus.OK || !rmqStatus.OK {
		statusCode = http.StatusServiceUnavailable
	}

	body := gin.H{
		"app":        h.info.Name,
		"env":        h.info.Env,
		"uptime_sec": int(time.Since(h.info.StartedAt).Seconds()),
		"llm": gin.H{
			"provider": h.info.Provider,
			"model":    h.info.Model,
		},
		"dependencies": gin.H{
			"redis":    redisStatus,
			"rabbitmq": rmqStatus,
		},
	}
	if h.info.Stats != nil {
		body["analysis"] = h.info.Stats.Snapshot()
	}
	c.JSON(statusCode, body)
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if h.info.Redis == nil {
		return dependencyStatus{OK: true}
	}
	if err := h.info.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Enabled: true, Message: err.Error()}
	}
	return dependencyStatus{OK: true, Enabled: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.info.MQConn == nil {
		return dependencyStatus{OK: true}
	}
	if h.info.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Enabled: true, Message: "connection closed"}
	}
	return dependencyStatus{OK: true, Enabled: true}
}

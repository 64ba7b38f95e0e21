package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Frame is the wire shape of the bridge protocol. The runner sends ping and
// sendMessage frames; we answer pong and response frames with matching IDs.
type Frame struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Message     string   `json:"message,omitempty"`
	ContactID   string   `json:"contactId,omitempty"`
	ContactName string   `json:"contactName,omitempty"`
	Success     bool     `json:"success,omitempty"`
	Error       string   `json:"error,omitempty"`
	ExtensionID string   `json:"extensionId,omitempty"`
	Version     string   `json:"version,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// MockExtension simulates the browser extension on the far side of the
// bridge websocket.
type MockExtension struct {
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	extensionID  string
	rng          *rand.Rand
}

func NewMockExtension(deliveryRate float64, minDelay, maxDelay time.Duration) *MockExtension {
	return &MockExtension{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		extensionID:  "MOCK_EXT_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockExtension) handleFrame(f Frame) Frame {
	switch f.Type {
	case "ping":
		return Frame{
			ID:          f.ID,
			Type:        "pong",
			ExtensionID: m.extensionID,
			Version:     "1.4.0",
			Permissions: []string{"tabs", "storage", "notifications"},
		}
	case "sendMessage":
		return m.simulateSend(f)
	default:
		return Frame{ID: f.ID, Type: "response", Error: "unknown frame type: " + f.Type}
	}
}

func (m *MockExtension) simulateSend(f Frame) Frame {
	delay := m.randomDelay()
	time.Sleep(delay)

	resp := Frame{ID: f.ID, Type: "response"}
	if m.shouldSucceed() {
		resp.Success = true
		log.Info().
			Str("phone", f.PhoneNumber).
			Str("contact", f.ContactName).
			Dur("delay", delay).
			Msg("Message delivered")
	} else {
		resp.Error = m.randomError()
		log.Warn().
			Str("phone", f.PhoneNumber).
			Str("error", resp.Error).
			Msg("Message delivery failed")
	}
	return resp
}

func (m *MockExtension) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockExtension) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockExtension) randomError() string {
	errs := []string{
		"number not on whatsapp",
		"session expired",
		"rate limited",
		"tab crashed",
	}
	return errs[m.rng.Intn(len(errs))]
}

// Handler holds the mock extension and routes
type Handler struct {
	ext      *MockExtension
	upgrader websocket.Upgrader
}

func NewHandler(ext *MockExtension) *Handler {
	return &Handler{ext: ext, upgrader: websocket.Upgrader{}}
}

// Bridge upgrades to a websocket and serves the frame protocol until the
// runner hangs up.
func (h *Handler) Bridge(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Runner connected")

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			log.Info().Err(err).Msg("Runner disconnected")
			return
		}
		if err := conn.WriteJSON(h.ext.handleFrame(f)); err != nil {
			log.Error().Err(err).Msg("Write failed")
			return
		}
	}
}

// HealthCheck reports the simulated extension identity
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"extension_id":  h.ext.extensionID,
		"timestamp":     time.Now(),
		"delivery_rate": h.ext.deliveryRate,
	})
}

// UpdateConfig allows changing the failure rate at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.ext.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.ext.deliveryRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	router.GET("/bridge", handler.Bridge)
	router.GET("/health", handler.HealthCheck)
	router.PUT("/config", handler.UpdateConfig)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8765")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 100*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 1*time.Second)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting bridge simulator")

	ext := NewMockExtension(deliveryRate, minDelay, maxDelay)
	router := SetupRouter(NewHandler(ext))

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

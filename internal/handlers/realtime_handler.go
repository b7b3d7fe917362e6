package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
)

type RealtimeHandler struct {
	Hub *realtime.Hub
}

// RequireUpgrade rejects plain HTTP requests to the websocket route.
func (h *RealtimeHandler) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func (h *RealtimeHandler) Events() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		p, ok := conn.Locals("principal").(models.Principal)
		if !ok {
			_ = conn.Close()
			return
		}
		h.Hub.Serve(conn, p.ID)
	})
}

type HealthHandler struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.Map{"database": "ok"}
	healthy := true

	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "down"
		healthy = false
	}
	if h.RDB != nil {
		status["redis"] = "ok"
		if err := h.RDB.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
			healthy = false
		}
	}

	code := fiber.StatusOK
	if !healthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"success": healthy, "data": status})
}

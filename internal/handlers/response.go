package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
)

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func paged(c *fiber.Ctx, data interface{}, total int64, page, limit int) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"meta":    fiber.Map{"total": total, "page": page, "limit": limit},
	})
}

// respondError is the single place where service errors become HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	e := apperr.As(err)
	entry := log.WithFields(log.Fields{
		"request_id": c.Locals("requestid"),
		"path":       c.Path(),
		"kind":       e.Kind,
		"code":       e.Code,
	})
	switch e.Kind {
	case apperr.KindInternal, apperr.KindGateway:
		entry.WithError(e.Err).Error(e.Message)
	default:
		entry.Debug(e.Message)
	}

	return c.Status(e.Status).JSON(fiber.Map{
		"success": false,
		"kind":    e.Kind,
		"code":    e.Code,
		"message": e.Message,
	})
}

// ErrorHandler plugs respondError into fiber.Config.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}

func principal(c *fiber.Ctx) (models.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return models.Principal{}, fiber.ErrUnauthorized
	}
	return p, nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("INVALID_ID", name+" must be a valid id")
	}
	return id, nil
}

func bind(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("INVALID_BODY", "request body is not valid JSON")
	}
	return nil
}

func pageParams(c *fiber.Ctx) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	limit, _ = strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

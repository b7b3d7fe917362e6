package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/jobs"
)

type JobHandler struct {
	Jobs *jobs.JobService
}

func NewJobHandler(svc *jobs.JobService) *JobHandler {
	return &JobHandler{Jobs: svc}
}

func (h *JobHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var in jobs.CreateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	job, err := h.Jobs.Create(c.UserContext(), p, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, job)
}

func (h *JobHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)
	list, total, err := h.Jobs.List(c.UserContext(), p, jobs.ListFilter{
		Status: models.JobStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return paged(c, list, total, page, limit)
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	job, err := h.Jobs.Get(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, job)
}

func (h *JobHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in jobs.UpdateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	job, err := h.Jobs.Update(c.UserContext(), p, id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, job)
}

func (h *JobHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Jobs.Delete(c.UserContext(), p, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "job request deleted"})
}

func (h *JobHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in jobs.StatusInput
	if err := bind(c, &in); err != nil {
		return err
	}
	job, err := h.Jobs.UpdateStatus(c.UserContext(), p, id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, job)
}

func (h *JobHandler) Rate(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in jobs.RatingInput
	if err := bind(c, &in); err != nil {
		return err
	}
	review, err := h.Jobs.Rate(c.UserContext(), p, id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, review)
}

func (h *JobHandler) AddNote(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in jobs.NoteInput
	if err := bind(c, &in); err != nil {
		return err
	}
	note, err := h.Jobs.AddNote(c.UserContext(), p, id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, note)
}

func (h *JobHandler) AddAttachment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in jobs.AttachmentInput
	if err := bind(c, &in); err != nil {
		return err
	}
	att, err := h.Jobs.AddAttachment(c.UserContext(), p, id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, att)
}

func (h *JobHandler) AddQuotation(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in jobs.QuotationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	q, err := h.Jobs.AddQuotation(c.UserContext(), p, id, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, q)
}

func (h *JobHandler) ListQuotations(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.Jobs.ListQuotations(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, list)
}

func (h *JobHandler) UpdateQuotationStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	qid, err := paramUUID(c, "qid")
	if err != nil {
		return err
	}
	var in jobs.QuotationStatusInput
	if err := bind(c, &in); err != nil {
		return err
	}
	q, err := h.Jobs.UpdateQuotationStatus(c.UserContext(), p, id, qid, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, q)
}

func (h *JobHandler) AddNegotiation(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	qid, err := paramUUID(c, "qid")
	if err != nil {
		return err
	}
	var in jobs.NegotiationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	msg, err := h.Jobs.AddNegotiationMessage(c.UserContext(), p, id, qid, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, msg)
}

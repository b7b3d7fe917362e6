package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
)

type Router struct {
	JWTSecret string

	Jobs     *JobHandler
	Payments *PaymentHandler
	Wallet   *WalletHandler
	Settings *SettingsHandler
	Realtime *RealtimeHandler
	Health   *HealthHandler
}

func (r *Router) Register(app *fiber.App) {
	auth := []fiber.Handler{middleware.JWTFromCookie(r.JWTSecret), middleware.AttachJWTLocals()}
	actors := middleware.RequireRoles(models.RoleProvider, models.RoleInspector)
	admin := middleware.RequireRoles(models.RoleAdmin)

	if r.Health != nil {
		app.Get("/health", r.Health.Check)
	}
	if r.Realtime != nil {
		app.Get("/ws/events", r.Realtime.RequireUpgrade, auth[0], auth[1], r.Realtime.Events())
	}

	api := app.Group("/api")

	// public, signature checked
	api.Post("/payments/webhook", r.Payments.Webhook)

	protected := api.Group("/", auth...)

	jobs := protected.Group("/jobs")
	jobs.Post("/", middleware.RequireRoles(models.RoleClient, models.RoleAdmin), r.Jobs.Create)
	jobs.Get("/", r.Jobs.List)
	jobs.Get("/:id", r.Jobs.Get)
	jobs.Put("/:id", r.Jobs.Update)
	jobs.Delete("/:id", r.Jobs.Delete)
	jobs.Patch("/:id/status", r.Jobs.UpdateStatus)
	jobs.Post("/:id/rating", middleware.RequireRoles(models.RoleClient), r.Jobs.Rate)
	jobs.Post("/:id/notes", r.Jobs.AddNote)
	jobs.Post("/:id/attachments", r.Jobs.AddAttachment)
	jobs.Post("/:id/quotations", actors, r.Jobs.AddQuotation)
	jobs.Get("/:id/quotations", r.Jobs.ListQuotations)
	jobs.Patch("/:id/quotations/:qid/status", r.Jobs.UpdateQuotationStatus)
	jobs.Post("/:id/quotations/:qid/negotiations", r.Jobs.AddNegotiation)

	jobs.Post("/:id/payments/intent", middleware.RequireRoles(models.RoleClient), r.Payments.CreateIntent)
	jobs.Post("/:id/payments/confirm", middleware.RequireRoles(models.RoleClient), r.Payments.Confirm)
	jobs.Get("/:id/payments", r.Payments.List)

	protected.Get("/balance", actors, r.Wallet.Balance)
	protected.Get("/balance/ledger", actors, r.Wallet.Ledger)
	protected.Post("/withdrawals", actors, r.Wallet.RequestWithdrawal)
	protected.Get("/withdrawals", r.Wallet.ListWithdrawals)
	protected.Get("/withdrawals/:id", r.Wallet.GetWithdrawal)

	adm := protected.Group("/admin", admin)
	adm.Patch("/withdrawals/:id/status", r.Wallet.UpdateWithdrawalStatus)
	adm.Get("/settings", r.Settings.Get)
	adm.Put("/settings", r.Settings.Update)
	adm.Post("/settings/preview", r.Settings.Preview)
	adm.Get("/balances/:ownerId", r.Wallet.AdminBalance)
}

package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/otc/v1")

	r.Post("/consignments", h.CreateConsignment)
	r.Get("/consignments", h.ListConsignments)
	r.Get("/consignments/mine", h.ListOwnConsignments)
	r.Get("/consignments/:id", h.GetConsignment)
	r.Patch("/consignments/:id", h.UpdateConsignment)
	r.Post("/consignments/:id/withdraw", h.WithdrawConsignment)
	r.Post("/consignments/:id/pause", h.PauseConsignment)
	r.Post("/consignments/:id/resume", h.ResumeConsignment)
	r.Post("/consignments/:id/reserve", h.ReserveAmount)
	r.Post("/consignments/:id/release", h.ReleaseReservation)
	r.Get("/consignments/:id/deals", h.ListDealsByConsignment)

	r.Post("/consignments/match", h.MatchConsignment)
	r.Get("/commission", h.GetCommission)

	r.Post("/deals", h.RecordDeal)
	r.Get("/deals", h.ListDealsByBuyer)
	r.Get("/deals/:id", h.GetDeal)
	r.Post("/deals/:id/executed", h.MarkDealExecuted)
	r.Post("/deals/:id/failed", h.MarkDealFailed)
	return nil
}

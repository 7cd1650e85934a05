package handler

import (
	"context"
	"net/http"

	"tutorhub/internal/payments/service"
	"tutorhub/internal/settlement"
	apperrors "tutorhub/pkg/errors"
	httputil "tutorhub/pkg/http"
	"tutorhub/pkg/logger"
	"tutorhub/pkg/middleware"
	"tutorhub/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type PaymentHandler struct {
	service    service.PaymentService
	settlement settlement.Coordinator
	log        *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, settlement settlement.Coordinator, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:    service,
		settlement: settlement,
		log:        log,
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payments", h.Create)
	router.GET("/api/v1/payments", h.List)
	router.GET("/api/v1/payments/pending", h.ListPending)
	router.GET("/api/v1/payments/stats", h.Stats)
	router.GET("/api/v1/payments/id/:id", h.GetByID)
	router.POST("/api/v1/payments/id/:id/confirm", h.decision("Confirm", h.settlement.ConfirmPayment))
	router.POST("/api/v1/payments/id/:id/reject", h.decision("Reject", h.service.Reject))
	router.POST("/api/v1/payments/id/:id/cancel", h.decision("Cancel", h.service.Cancel))
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "Create")
	if !ok {
		return
	}

	var input model.CreatePaymentInput
	if err := httputil.DecodeJSON(r, &input, false); err != nil {
		h.writeError(w, err, "Create")
		return
	}
	if input.UserID == "" && !actor.IsAdmin() {
		input.UserID = actor.ID
	}

	payment, err := h.service.Create(r.Context(), actor, &input)
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	if err := httputil.WriteCreated(w, payment); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "GetByID")
	if !ok {
		return
	}

	payment, err := h.service.GetByID(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, err, "GetByID")
		return
	}

	if err := httputil.WriteSuccess(w, payment); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "List")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "List")
		return
	}

	payments, total, err := h.service.ListForUser(r.Context(), actor, r.URL.Query().Get("user_id"), limit, offset)
	if err != nil {
		h.writeError(w, err, "List")
		return
	}

	if err := httputil.WritePaginated(w, payments, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *PaymentHandler) ListPending(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "ListPending")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "ListPending")
		return
	}

	payments, total, err := h.service.ListPending(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, err, "ListPending")
		return
	}

	if err := httputil.WritePaginated(w, payments, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListPending", "operation", "WritePaginated", "error", err)
	}
}

func (h *PaymentHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "Stats")
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), actor)
	if err != nil {
		h.writeError(w, err, "Stats")
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

type decisionFunc func(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error)

// decision adapts the admin review endpoints. The body is optional.
func (h *PaymentHandler) decision(name string, fn decisionFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		actor, ok := h.actor(w, r, name)
		if !ok {
			return
		}

		var input model.PaymentDecisionInput
		if err := httputil.DecodeJSON(r, &input, true); err != nil {
			h.writeError(w, err, name)
			return
		}

		payment, err := fn(r.Context(), ps.ByName("id"), actor, &input)
		if err != nil {
			h.writeError(w, err, name)
			return
		}

		if err := httputil.WriteSuccess(w, payment); err != nil {
			h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
		}
	}
}

func (h *PaymentHandler) actor(w http.ResponseWriter, r *http.Request, handler string) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, apperrors.Unauthorized("Authentication required"), handler)
	}
	return actor, ok
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

package handler

import (
	"context"
	"net/http"

	"tutorhub/internal/bookings/service"
	apperrors "tutorhub/pkg/errors"
	httputil "tutorhub/pkg/http"
	"tutorhub/pkg/logger"
	"tutorhub/pkg/middleware"
	"tutorhub/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/confirm", h.transition("Confirm", h.service.Confirm))
	router.POST("/api/v1/bookings/id/:id/start", h.transition("Start", h.service.Start))
	router.POST("/api/v1/bookings/id/:id/complete", h.transition("Complete", h.service.Complete))
	router.POST("/api/v1/bookings/id/:id/no-show", h.transition("MarkNoShow", h.service.MarkNoShow))
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "Create")
	if !ok {
		return
	}

	var input model.CreateBookingInput
	if err := httputil.DecodeJSON(r, &input, false); err != nil {
		h.writeError(w, err, "Create")
		return
	}

	// Students book for themselves; admins may book on a student's behalf.
	if !actor.IsAdmin() {
		if input.StudentID != "" && input.StudentID != actor.ID {
			h.writeError(w, apperrors.Forbidden("Students can only book for themselves"), "Create")
			return
		}
		input.StudentID = actor.ID
	}

	booking, err := h.service.Create(r.Context(), &input)
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "GetByID")
	if !ok {
		return
	}

	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, err, "GetByID")
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "List")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "List")
		return
	}

	query := r.URL.Query()
	bookings, total, err := h.service.ListForUser(r.Context(), actor,
		query.Get("user_id"), model.Role(query.Get("role")), limit, offset)
	if err != nil {
		h.writeError(w, err, "List")
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Cancel")
	if !ok {
		return
	}

	var input model.CancelBookingInput
	if err := httputil.DecodeJSON(r, &input, true); err != nil {
		h.writeError(w, err, "Cancel")
		return
	}

	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"), actor, &input)
	if err != nil {
		h.writeError(w, err, "Cancel")
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

type transitionFunc func(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)

// transition adapts a bodyless state change endpoint.
func (h *BookingHandler) transition(name string, fn transitionFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		actor, ok := h.actor(w, r, name)
		if !ok {
			return
		}

		booking, err := fn(r.Context(), ps.ByName("id"), actor)
		if err != nil {
			h.writeError(w, err, name)
			return
		}

		if err := httputil.WriteSuccess(w, booking); err != nil {
			h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
		}
	}
}

func (h *BookingHandler) actor(w http.ResponseWriter, r *http.Request, handler string) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, apperrors.Unauthorized("Authentication required"), handler)
	}
	return actor, ok
}

func (h *BookingHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

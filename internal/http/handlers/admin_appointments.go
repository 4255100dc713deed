package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/medspa-concierge/internal/appointments"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// UpcomingLister lists future appointments.
type UpcomingLister interface {
	ListUpcoming(ctx context.Context) ([]appointments.Appointment, error)
}

// AdminAppointmentsHandler lists upcoming appointments for operators.
type AdminAppointmentsHandler struct {
	store  UpcomingLister
	logger *logging.Logger
}

func NewAdminAppointmentsHandler(store UpcomingLister, logger *logging.Logger) *AdminAppointmentsHandler {
	if store == nil {
		panic("handlers: appointment store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAppointmentsHandler{store: store, logger: logger}
}

// ListUpcoming handles GET /admin/appointments.
func (h *AdminAppointmentsHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListUpcoming(r.Context())
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": list,
		"count":        len(list),
	})
}

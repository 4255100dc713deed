package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// PolicyStore reads and replaces the clinic policy document.
type PolicyStore interface {
	Load(ctx context.Context) *policy.Config
	Save(ctx context.Context, cfg *policy.Config) (*policy.Config, error)
}

// AdminPolicyHandler exposes the policy document to operators.
type AdminPolicyHandler struct {
	store  PolicyStore
	logger *logging.Logger
}

func NewAdminPolicyHandler(store PolicyStore, logger *logging.Logger) *AdminPolicyHandler {
	if store == nil {
		panic("handlers: policy store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminPolicyHandler{store: store, logger: logger}
}

// Get returns the active policy.
// GET /admin/policy
func (h *AdminPolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Load(r.Context()))
}

// Put validates and stores a full replacement policy.
// PUT /admin/policy
func (h *AdminPolicyHandler) Put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	cfg, err := policy.Decode(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.store.Save(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, policy.ErrInvalidConfig) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to save policy", "error", err)
		jsonError(w, "failed to save policy", http.StatusInternalServerError)
		return
	}
	h.logger.Info("policy updated", "version", saved.Version)
	writeJSON(w, http.StatusOK, saved)
}

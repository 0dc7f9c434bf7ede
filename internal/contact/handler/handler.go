package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coalesce/internal/contact"
	"coalesce/internal/platform/middleware"
	"coalesce/internal/transport/http/shared"
	dErrors "coalesce/pkg/domain-errors"
)

// Service defines the reconciliation operation the handler exposes.
type Service interface {
	Identify(ctx context.Context, email, phone string) (contact.ConsolidatedView, error)
}

// Handler handles the identify endpoint.
type Handler struct {
	logger       *slog.Logger
	contacts     Service
	jwtValidator middleware.JWTValidator
}

// Option configures optional handler collaborators.
type Option func(*Handler)

// WithJWTValidator enables bearer-token auth on the identify route.
func WithJWTValidator(validator middleware.JWTValidator) Option {
	return func(h *Handler) {
		h.jwtValidator = validator
	}
}

func New(contacts Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:   logger,
		contacts: contacts,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the identify route with the chi router.
func (h *Handler) Register(r chi.Router) {
	identifyRouter := chi.NewRouter()
	identifyRouter.Use(middleware.Recovery(h.logger))
	identifyRouter.Use(middleware.RequestID)
	identifyRouter.Use(middleware.Logger(h.logger))
	identifyRouter.Use(middleware.Timeout(30 * time.Second))
	identifyRouter.Use(middleware.ContentTypeJSON)
	if h.jwtValidator != nil {
		identifyRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	}
	identifyRouter.Post("/identify", h.handleIdentify)

	r.Mount("/", identifyRouter)
}

type identifyRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

type contactPayload struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

type identifyResponse struct {
	Contact contactPayload `json:"contact"`
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	view, err := h.contacts.Identify(ctx, req.Email, req.PhoneNumber)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.WarnContext(ctx, "invalid identify request",
				"request_id", requestID,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "identify failed",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, identifyResponse{Contact: toContactPayload(view)})
}

func toContactPayload(view contact.ConsolidatedView) contactPayload {
	payload := contactPayload{
		PrimaryContactID:    view.PrimaryContactID,
		Emails:              view.Emails,
		PhoneNumbers:        view.PhoneNumbers,
		SecondaryContactIDs: view.SecondaryContactIDs,
	}
	// JSON arrays, never null.
	if payload.Emails == nil {
		payload.Emails = []string{}
	}
	if payload.PhoneNumbers == nil {
		payload.PhoneNumbers = []string{}
	}
	if payload.SecondaryContactIDs == nil {
		payload.SecondaryContactIDs = []int64{}
	}
	return payload
}

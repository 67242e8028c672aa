package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/waitlist-service/internal/api/dto"
	"github.com/spec-kit/waitlist-service/internal/domain"
	"github.com/spec-kit/waitlist-service/internal/repository"
	"github.com/spec-kit/waitlist-service/internal/service"
	apperrors "github.com/spec-kit/waitlist-service/pkg/util"
)

// WaitlistHandler manages the public waitlist endpoints.
type WaitlistHandler struct {
	service *service.WaitlistService
}

// NewWaitlistHandler constructs handler.
func NewWaitlistHandler(waitlistService *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{service: waitlistService}
}

// Join POST /waitlist.
func (h *WaitlistHandler) Join(c *fiber.Ctx) error {
	var req dto.JoinWaitlistRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.ClientID == "" {
		return apperrors.NewValidationError("name, valid partySize, and a valid clientId are required", nil)
	}

	result, err := h.service.Join(c.Context(), req.Name, req.PartySize, req.ClientID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.JoinWaitlistResponse{
		Message: result.Message,
		PartyID: result.PartyID,
		Status:  result.Status,
	})
}

// GetParty GET /waitlist/:partyId.
func (h *WaitlistHandler) GetParty(c *fiber.Ctx) error {
	party, err := h.service.PartyByID(c.Context(), c.Params("partyId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("party", map[string]any{"party_id": c.Params("partyId")})
		}
		return apperrors.NewInternalError(err)
	}
	return c.JSON(partyResponse(party))
}

func partyResponse(party *domain.Party) dto.PartyResponse {
	return dto.PartyResponse{
		ID:            party.ID,
		ClientID:      party.ClientID,
		Name:          party.Name,
		PartySize:     party.PartySize,
		Status:        party.Status,
		JoinedAt:      party.JoinedAt,
		ReadyAt:       party.ReadyAt,
		CheckedInAt:   party.CheckedInAt,
		ServiceEndsAt: party.ServiceEndsAt,
	}
}

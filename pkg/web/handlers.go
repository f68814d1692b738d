// Package web provides the ingestion HTTP endpoints: event tracking, user
// attribute updates and journey statistics.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/embarkhq/embark/pkg/journey"
	"github.com/embarkhq/embark/pkg/models"
)

type Handlers struct {
	service  *journey.Service
	validate *validator.Validate
}

func NewHandlers(service *journey.Service, validate *validator.Validate) *Handlers {
	return &Handlers{
		service:  service,
		validate: validate,
	}
}

// TrackEventRequest is the body of POST /v1/projects/:project/events.
type TrackEventRequest struct {
	UserID     string         `json:"user_id"    validate:"required"`
	Name       string         `json:"name"       validate:"required,min=1"`
	Properties map[string]any `json:"properties"`
}

// UpdateUserRequest is the body of PUT /v1/projects/:project/users/:id.
type UpdateUserRequest struct {
	Email      string         `json:"email"      validate:"omitempty,email"`
	Timezone   string         `json:"timezone"`
	Attributes map[string]any `json:"attributes"`
}

func (h *Handlers) TrackEvent(c fiber.Ctx) error {
	projectID := c.Params("project")

	var req TrackEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &models.Event{
		ProjectID:  projectID,
		UserID:     req.UserID,
		Name:       req.Name,
		Properties: req.Properties,
	}

	if err := h.service.TrackEvent(c.Context(), event); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
	})
}

func (h *Handlers) UpdateUser(c fiber.Ctx) error {
	projectID := c.Params("project")
	userID := c.Params("id")

	var req UpdateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := h.service.UpdateUser(c.Context(), &models.User{
		ID:         userID,
		ProjectID:  projectID,
		Email:      req.Email,
		Timezone:   req.Timezone,
		Attributes: req.Attributes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(user)
}

func (h *Handlers) JourneyStats(c fiber.Ctx) error {
	stats, err := h.service.JourneyStats(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

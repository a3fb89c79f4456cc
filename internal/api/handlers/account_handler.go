package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadflow/internal/service"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

type AccountHandler struct {
	s service.CredentialService
}

func NewAccountHandler(s service.CredentialService) *AccountHandler {
	return &AccountHandler{s: s}
}

func (h *AccountHandler) Register(c *fiber.Ctx) error {
	var req transfer.RegisterAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id, err := h.s.Register(c.Context(), req.Username, req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, service.ErrConfig) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to register account",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": id,
	})
}

func (h *AccountHandler) Connect(c *fiber.Ctx) error {
	accountID, err := GetID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var req transfer.ConnectAccountRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err = h.s.Connect(c.Context(), accountID, req.Code, req.CodeVerifier, req.RedirectURI)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Account connected",
	})
}

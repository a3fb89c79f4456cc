package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
)

func GetID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return int64(id), nil
}

// errorStatus maps publishing errors onto HTTP statuses.
func errorStatus(err error) int {
	var apiErr *service.APIError
	var transferErr *service.TransferError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repository.ErrNotClaimable):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrConfig):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &apiErr), errors.As(err, &transferErr):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

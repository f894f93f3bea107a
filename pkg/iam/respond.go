package iam

import "github.com/gofiber/fiber/v2"

// Envelope is the uniform response body every handler returns. Error
// responses use the same shape, filled in by the global error handler.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK writes a success envelope with a 200 status.
func OK(c *fiber.Ctx, message string, data any) error {
	return Respond(c, fiber.StatusOK, message, data)
}

// Created writes a success envelope with a 201 status.
func Created(c *fiber.Ctx, message string, data any) error {
	return Respond(c, fiber.StatusCreated, message, data)
}

// Respond writes a success envelope with an explicit status.
func Respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Message: message, Data: data})
}

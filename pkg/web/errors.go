package web

import (
	"errors"

	"github.com/dukex/convoflow/pkg/engine"
	"github.com/dukex/convoflow/pkg/persistence"
	"github.com/dukex/convoflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

var ErrRunNotFound = errors.New("run not found")

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service, graph and engine errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow_not_found", "flow not found")

	case persistence.IsNodeNotFound(err):
		return notFound(c, "node_not_found", "node not found")

	case persistence.IsEdgeNotFound(err):
		return notFound(c, "edge_not_found", "edge not found")

	case persistence.IsVersionNotFound(err):
		return notFound(c, "version_not_found", "version not found")

	case errors.Is(err, ErrRunNotFound):
		return notFound(c, "run_not_found", "run not found")

	case services.IsConflictError(err):
		return conflict(c, err.Error())

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, engine.ErrInvalidChannel),
		errors.Is(err, engine.ErrInvalidDigits),
		errors.Is(err, engine.ErrNoStartNode),
		errors.Is(err, engine.ErrStepLimit):
		return badRequest(c, err.Error())

	case errors.Is(err, engine.ErrRunEnded),
		errors.Is(err, engine.ErrRunStarted),
		errors.Is(err, engine.ErrNotWaitingForInput),
		errors.Is(err, engine.ErrNotWaitingForDigits),
		errors.Is(err, engine.ErrNotVoiceRun):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}

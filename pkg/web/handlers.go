// Package web provides HTTP handlers and REST API endpoints for flow authoring and simulation.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/convoflow/pkg/engine"
	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/registry"
	"github.com/dukex/convoflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	flowService       *services.Flow
	nodeService       *services.Node
	edgeService       *services.Edge
	publishingService *services.Publishing
	engine            *engine.Engine
	runs              *Runs
	validator         *validator.Validate
	registry          *registry.Registry
}

func NewAPIHandlers(
	flowService *services.Flow,
	nodeService *services.Node,
	edgeService *services.Edge,
	publishingService *services.Publishing,
	engine *engine.Engine,
	runs *Runs,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		flowService:       flowService,
		nodeService:       nodeService,
		edgeService:       edgeService,
		publishingService: publishingService,
		engine:            engine,
		runs:              runs,
		validator:         validator,
		registry:          registry,
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	f := app.Group("/flows")
	f.Get("/", h.GetFlows)
	f.Post("/", h.CreateFlow)
	f.Get("/:id", h.GetFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Post("/:id/duplicate", h.DuplicateFlow)

	f.Post("/:id/nodes", h.CreateNode)
	f.Patch("/:id/nodes/:nodeId", h.UpdateNode)
	f.Put("/:id/nodes/:nodeId/position", h.MoveNode)
	f.Post("/:id/nodes/:nodeId/duplicate", h.DuplicateNode)
	f.Delete("/:id/nodes/:nodeId", h.DeleteNode)

	f.Post("/:id/edges", h.CreateEdge)
	f.Delete("/:id/edges/:edgeId", h.DeleteEdge)

	f.Post("/:id/publish", h.PublishFlow)
	f.Get("/:id/versions", h.GetVersions)
	f.Post("/:id/versions/:versionId/rollback", h.RollbackFlow)
	f.Post("/:id/versions/:versionId/restore", h.RestoreFlow)

	f.Post("/:id/runs", h.StartRun)

	r := app.Group("/runs")
	r.Get("/:runId", h.GetRun)
	r.Post("/:runId/input", h.SubmitInput)
	r.Post("/:runId/digits", h.SubmitDigits)
	r.Post("/:runId/hangup", h.HangUp)
	r.Delete("/:runId", h.DeleteRun)

	app.Get("/node-types", h.GetNodeTypes)
	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	req := services.ListFlowsRequest{Category: c.Query("category")}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.FlowStatus(statusStr)
		req.Status = &status
	}

	flows, err := h.flowService.List(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	summaries := make([]FlowSummary, 0, len(flows))
	for _, flow := range flows {
		summaries = append(summaries, TransformFlowSummary(flow))
	}

	return c.JSON(fiber.Map{
		"flows":       summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.Create(c.Context(), services.CreateFlowRequest{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) DuplicateFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Duplicate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	if err := h.flowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateNode(c fiber.Ctx) error {
	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.Add(c.Context(), c.Params("id"), &services.AddNodeRequest{
		Type:     models.NodeType(req.Type),
		Position: models.Position{X: req.Position.X, Y: req.Position.Y},
		Name:     req.Name,
		Data:     req.Data,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.UpdateData(c.Context(), c.Params("id"), c.Params("nodeId"), req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) MoveNode(c fiber.Ctx) error {
	var req PositionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	node, err := h.nodeService.Move(c.Context(), c.Params("id"), c.Params("nodeId"), models.Position{X: req.X, Y: req.Y})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DuplicateNode(c fiber.Ctx) error {
	node, err := h.nodeService.Duplicate(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	if err := h.nodeService.Delete(c.Context(), c.Params("id"), c.Params("nodeId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateEdge(c fiber.Ctx) error {
	var req CreateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.edgeService.Add(c.Context(), c.Params("id"), &services.AddEdgeRequest{
		Source: req.Source,
		Target: req.Target,
		Handle: graph.Handle(req.Handle),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) DeleteEdge(c fiber.Ctx) error {
	if err := h.edgeService.Delete(c.Context(), c.Params("id"), c.Params("edgeId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishFlow(c fiber.Ctx) error {
	var req PublishFlowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, version, err := h.publishingService.Publish(c.Context(), c.Params("id"), services.PublishRequest{
		Changelog: req.Changelog,
		Author:    req.Author,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"flow":    flow,
		"version": version,
	})
}

func (h *APIHandlers) GetVersions(c fiber.Ctx) error {
	versions, err := h.publishingService.Versions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"versions": versions})
}

func (h *APIHandlers) RollbackFlow(c fiber.Ctx) error {
	flow, err := h.publishingService.Rollback(c.Context(), c.Params("id"), c.Params("versionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) RestoreFlow(c fiber.Ctx) error {
	flow, err := h.publishingService.Restore(c.Context(), c.Params("id"), c.Params("versionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

// StartRun simulates the stored flow and responds once the run suspends or ends.
func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	run, err := h.engine.NewRun(flow, models.Channel(req.Channel))
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := run.Start(c.Context()); err != nil {
		return handleServiceError(c, err)
	}

	h.runs.Add(run)

	return c.Status(fiber.StatusCreated).JSON(run.Snapshot())
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.runs.Get(c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run.Snapshot())
}

func (h *APIHandlers) SubmitInput(c fiber.Ctx) error {
	var req SubmitInputRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runs.Get(c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := run.SubmitText(c.Context(), req.Text); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run.Snapshot())
}

func (h *APIHandlers) SubmitDigits(c fiber.Ctx) error {
	var req SubmitDigitsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runs.Get(c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := run.SubmitDigits(c.Context(), req.Digits); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run.Snapshot())
}

func (h *APIHandlers) HangUp(c fiber.Ctx) error {
	run, err := h.runs.Get(c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := run.EndCall(c.Context()); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run.Snapshot())
}

func (h *APIHandlers) DeleteRun(c fiber.Ctx) error {
	if err := h.runs.Remove(c.Context(), c.Params("runId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"node_types": h.registry.Catalog()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Convoflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Convoflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// handlers/asset_routes.go
package handlers

import (
	"errors"
	"strconv"

	"asset-curation-system/middleware"
	"asset-curation-system/models"
	"asset-curation-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAssetRoutes wires the public read surface and the secured
// submit/vote surface.
func SetupAssetRoutes(app *fiber.App, projects *services.ProjectService, submissions *services.SubmissionService, karma *services.KarmaService, feed *services.FeedService) {
	// 🔓 Public routes — no wallet context, but still behind Gateway auth
	app.Get("/projects", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		list, err := projects.List(c.Context(), limit)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(list)
	})

	app.Get("/projects/:id/assets", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		assets, err := submissions.ListAssets(c.Context(), c.Params("id"), c.Query("status"), limit)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(assets)
	})

	app.Get("/projects/:id/verified", func(c *fiber.Ctx) error {
		rows, err := submissions.ListVerified(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(rows)
	})

	app.Get("/projects/:id/feed", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		events, err := feed.Recent(c.Context(), c.Params("id"), limit)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(events)
	})

	app.Get("/projects/:id/karma/top", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		rows, err := karma.TopKarma(c.Context(), c.Params("id"), limit)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(rows)
	})

	app.Get("/assets/:id", func(c *fiber.Ctx) error {
		asset, err := submissions.GetAsset(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(asset)
	})

	// 🔐 Secured routes — require wallet context from the gateway
	secured := app.Group("/", middleware.WalletContextMiddleware())

	secured.Post("/assets", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet").(string)

		var in services.SubmitInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		asset, err := submissions.Submit(c.Context(), wallet, in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(asset)
	})

	secured.Post("/assets/:id/votes", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet").(string)

		var req struct {
			Kind models.VoteKind `json:"kind"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		vote, err := submissions.Vote(c.Context(), c.Params("id"), wallet, req.Kind)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(vote)
	})

	secured.Get("/projects/:id/karma/me", func(c *fiber.Ctx) error {
		wallet := c.Locals("wallet").(string)
		row, err := karma.GetKarma(c.Context(), wallet, c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(row)
	})
}

// serviceError maps the core error taxonomy onto HTTP statuses. Eligibility
// and uniqueness failures read as simple rejections; conflicts that survived
// the internal retries read as "try again".
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNoStake),
		errors.Is(err, services.ErrBanned):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyVoted),
		errors.Is(err, services.ErrDuplicateClaim),
		errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrEmptyReason):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrStoreConflict):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "temporary conflict, try again"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

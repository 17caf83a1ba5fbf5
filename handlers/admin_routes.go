// handlers/admin_routes.go
package handlers

import (
	"context"
	"errors"
	"time"

	"asset-curation-system/middleware"
	"asset-curation-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes wires the moderator/admin override surface. Everything
// here requires the gateway-forwarded "admin" role.
func SetupAdminRoutes(app *fiber.App, admin *services.AdminService, moderation *services.ModerationService, projects *services.ProjectService) {
	adminGroup := app.Group("/admin", middleware.WalletContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/projects", func(c *fiber.Ctx) error {
		var req struct {
			Name        string  `json:"name"`
			TokenMint   string  `json:"token_mint"`
			TotalSupply float64 `json:"total_supply"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		project, err := projects.Create(c.Context(), req.Name, req.TokenMint, req.TotalSupply)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(project)
	})

	adminGroup.Post("/assets/:id/verify", func(c *fiber.Ctx) error {
		if err := admin.ForceVerify(c.Context(), c.Params("id")); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "asset verified"})
	})

	adminGroup.Post("/assets/:id/hide", func(c *fiber.Ctx) error {
		if err := admin.ForceHide(c.Context(), c.Params("id")); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "asset hidden"})
	})

	adminGroup.Post("/assets/:id/unhide", func(c *fiber.Ctx) error {
		if err := admin.Unhide(c.Context(), c.Params("id")); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "asset restored"})
	})

	adminGroup.Delete("/assets/:id", func(c *fiber.Ctx) error {
		if err := admin.ForceDelete(c.Context(), c.Params("id")); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "asset deleted"})
	})

	adminGroup.Post("/assets/bulk/verify", bulkHandler(admin.BulkForceVerify))
	adminGroup.Post("/assets/bulk/delete", bulkHandler(admin.BulkForceDelete))

	adminGroup.Post("/karma/adjust", func(c *fiber.Ctx) error {
		var req struct {
			Wallet    string  `json:"wallet"`
			ProjectID string  `json:"project_id"`
			Delta     float64 `json:"delta"`
			Reason    string  `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		newTotal, err := admin.AdjustKarma(c.Context(), req.Wallet, req.ProjectID, req.Delta, req.Reason)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "karma adjusted", "new_total": newTotal})
	})

	adminGroup.Post("/moderation/ban", func(c *fiber.Ctx) error {
		var req struct {
			Wallet      string `json:"wallet"`
			ProjectID   string `json:"project_id"`
			DurationHrs int    `json:"duration_hours"` // 0 = permanent
			Reason      string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		err := moderation.Ban(c.Context(), req.Wallet, req.ProjectID,
			time.Duration(req.DurationHrs)*time.Hour, req.Reason)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "wallet banned"})
	})

	adminGroup.Post("/moderation/unban", func(c *fiber.Ctx) error {
		var req struct {
			Wallet    string `json:"wallet"`
			ProjectID string `json:"project_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := moderation.Unban(c.Context(), req.Wallet, req.ProjectID); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "wallet unbanned"})
	})

	adminGroup.Post("/moderation/warn", func(c *fiber.Ctx) error {
		var req struct {
			Wallet    string `json:"wallet"`
			ProjectID string `json:"project_id"`
			Reason    string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := moderation.Warn(c.Context(), req.Wallet, req.ProjectID, req.Reason); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "warning recorded"})
	})

	adminGroup.Post("/moderation/clear-warnings", func(c *fiber.Ctx) error {
		var req struct {
			Wallet    string `json:"wallet"`
			ProjectID string `json:"project_id"`
			Reason    string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := moderation.ClearWarnings(c.Context(), req.Wallet, req.ProjectID, req.Reason); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "warnings cleared"})
	})
}

// bulkHandler runs a bulk op and always returns the per-item result set;
// partial failure is a 207, not an abort.
func bulkHandler(op func(ctx context.Context, ids []string) ([]services.BatchItemResult, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			AssetIDs []string `json:"asset_ids"`
		}
		if err := c.BodyParser(&req); err != nil || len(req.AssetIDs) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset_ids is required"})
		}
		results, err := op(c.Context(), req.AssetIDs)
		var partial *services.PartialBatchFailureError
		if errors.As(err, &partial) {
			return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
				"message": partial.Error(),
				"results": results,
			})
		}
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"results": results})
	}
}

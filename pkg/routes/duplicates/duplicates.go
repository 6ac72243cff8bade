package duplicates

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Detector runs duplicate detection for a tenant
type Detector interface {
	Detect(ctx context.Context, tenantID string) (*matching.Report, error)
}

// Handler serves duplicate detection results
type Handler struct {
	detector Detector
	logger   ectologger.Logger
}

// NewHandler creates a new duplicates handler
func NewHandler(detector Detector, logger ectologger.Logger) *Handler {
	return &Handler{
		detector: detector,
		logger:   logger,
	}
}

// Register registers duplicate routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/clients/duplicates", h.List)
}

// List scores the tenant's clients and returns the groups for review. The optional
// confidence query parameter keeps only groups of that tier; summary and quality always
// describe the full run.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := appctx.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var confidence models.Confidence
	if raw := c.QueryParam("confidence"); raw != "" {
		confidence = models.Confidence(raw)
		if confidence.Rank() == 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "confidence must be one of high, medium, low")
		}
	}

	report, err := h.detector.Detect(ctx, tenantID)
	if err != nil {
		return err
	}

	if confidence != "" {
		filtered := make([]models.DuplicateGroup, 0, len(report.Groups))
		for _, g := range report.Groups {
			if g.Confidence == confidence {
				filtered = append(filtered, g)
			}
		}
		report.Groups = filtered
	}

	return c.JSON(http.StatusOK, report)
}

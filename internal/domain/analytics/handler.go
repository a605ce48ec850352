package analytics

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/auth"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/analytics", auth.RequireRole(auth.RoleDoctor))
	g.GET("/practice-summary", h.PracticeSummary)
}

// PracticeSummary defaults to the last 30 days ending today.
func (h *Handler) PracticeSummary(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := auth.ResolveDoctor(ctx, c.QueryParam("doctorId"), false)
	if err != nil {
		return err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	to, err := dateParam(c, "endDate", today)
	if err != nil {
		return err
	}
	from, err := dateParam(c, "startDate", to.AddDate(0, 0, -29))
	if err != nil {
		return err
	}

	payload, cached, err := h.svc.PracticeSummary(ctx, doctorID, from, to)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			return validation.Fail(err.Error(), "endDate", "gtefield")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "cached": cached, "data": payload})
}

func dateParam(c echo.Context, name string, def time.Time) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.Parse(validation.DateLayout, raw)
	if err != nil {
		return time.Time{}, validation.Fail("invalid "+name+", expected YYYY-MM-DD", name, "date")
	}
	return d, nil
}

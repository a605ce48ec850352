package task

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/auth"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/validation"
	"github.com/Fafulop/healthcare-platform-sub003/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/tasks", auth.RequireRole(auth.RoleDoctor))
	g.GET("", h.ListTasks)
	g.POST("", h.CreateTask)
	g.GET("/:id", h.GetTask)
	g.PUT("/:id", h.UpdateTask)
	g.DELETE("/:id", h.DeleteTask)
}

type taskRequest struct {
	DoctorID    string  `json:"doctorId" validate:"omitempty,uuid"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate" validate:"omitempty,date"`
	StartTime   *string `json:"startTime" validate:"omitempty,clock"`
	EndTime     *string `json:"endTime" validate:"omitempty,clock"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Status      string  `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
}

func (r *taskRequest) apply(t *Task) {
	t.Title = r.Title
	t.Description = r.Description
	t.DueDate = nil
	if r.DueDate != nil {
		d, _ := time.Parse(validation.DateLayout, *r.DueDate)
		t.DueDate = &d
	}
	t.StartTime = r.StartTime
	t.EndTime = r.EndTime
	t.Priority = Priority(r.Priority)
	t.Status = Status(r.Status)
	t.Category = r.Category
}

func bindTask(c echo.Context) (*taskRequest, error) {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (h *Handler) CreateTask(c echo.Context) error {
	req, err := bindTask(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	doctorID, err := auth.ResolveDoctor(ctx, req.DoctorID, false)
	if err != nil {
		return err
	}
	t := &Task{DoctorID: doctorID}
	req.apply(t)
	if err := h.svc.CreateTask(ctx, t); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": t})
}

// ownedTask loads the task and checks the caller may manage it.
func (h *Handler) ownedTask(c echo.Context) (*Task, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTask(c.Request().Context(), id)
	if err != nil {
		return nil, mapError(err)
	}
	if err := auth.AuthorizeDoctor(c.Request().Context(), t.DoctorID); err != nil {
		return nil, err
	}
	return t, nil
}

func (h *Handler) GetTask(c echo.Context) error {
	t, err := h.ownedTask(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": t})
}

func (h *Handler) UpdateTask(c echo.Context) error {
	t, err := h.ownedTask(c)
	if err != nil {
		return err
	}
	req, err := bindTask(c)
	if err != nil {
		return err
	}
	req.apply(t)
	if err := h.svc.UpdateTask(c.Request().Context(), t); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": t})
}

func (h *Handler) DeleteTask(c echo.Context) error {
	t, err := h.ownedTask(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTask(c.Request().Context(), t.ID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *Handler) ListTasks(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := auth.ResolveDoctor(ctx, c.QueryParam("doctorId"), true)
	if err != nil {
		return err
	}
	f := Filter{DoctorID: doctorID, Status: Status(c.QueryParam("status"))}
	for name, dst := range map[string]**time.Time{"startDate": &f.From, "endDate": &f.To} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(validation.DateLayout, raw)
		if err != nil {
			return validation.Fail("invalid "+name+", expected YYYY-MM-DD", name, "date")
		}
		*dst = &d
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTasks(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []*Task{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrInvalidWindow),
		errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidPrio):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}

package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

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
	staff := api.Group("/appointments", auth.RequireRole(auth.RoleDoctor))
	staff.GET("/slots", h.ListSlots)
	staff.POST("/slots", h.CreateSlots)
	staff.DELETE("/slots/:id", h.DeleteSlot)
	staff.PATCH("/slots/:id", h.UpdateSlot)
	staff.GET("/slots/:id/bookings", h.ListBookings)
	staff.PATCH("/bookings/:id", h.UpdateBookingStatus)

	// Any authenticated caller may book.
	api.POST("/appointments/slots/:id/bookings", h.CreateBooking)
}

type createSlotsRequest struct {
	DoctorID         string           `json:"doctorId" validate:"required,uuid"`
	Mode             string           `json:"mode" validate:"omitempty,oneof=single recurring"`
	Date             string           `json:"date" validate:"omitempty,date"`
	StartDate        string           `json:"startDate" validate:"omitempty,date"`
	EndDate          string           `json:"endDate" validate:"omitempty,date"`
	DaysOfWeek       []int            `json:"daysOfWeek" validate:"omitempty,dive,weekday"`
	StartTime        string           `json:"startTime" validate:"required,clock"`
	EndTime          string           `json:"endTime" validate:"required,clock"`
	Duration         int              `json:"duration"`
	BreakStart       string           `json:"breakStart" validate:"omitempty,clock"`
	BreakEnd         string           `json:"breakEnd" validate:"omitempty,clock"`
	BasePrice        *decimal.Decimal `json:"basePrice"`
	Discount         *decimal.Decimal `json:"discount"`
	DiscountType     *string          `json:"discountType"`
	MaxBookings      int              `json:"maxBookings" validate:"omitempty,min=1,max=100"`
	ReplaceConflicts bool             `json:"replaceConflicts"`
}

// toCommand checks the rules that span several fields.
func (r *createSlotsRequest) toCommand() (CreateSlotsRequest, error) {
	cmd := CreateSlotsRequest{
		DoctorID:         uuid.MustParse(r.DoctorID),
		Mode:             Mode(r.Mode),
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Duration:         r.Duration,
		BreakStart:       r.BreakStart,
		BreakEnd:         r.BreakEnd,
		Discount:         r.Discount,
		MaxBookings:      r.MaxBookings,
		ReplaceConflicts: r.ReplaceConflicts,
	}
	if cmd.Mode == "" {
		cmd.Mode = ModeSingle
	}
	if r.BasePrice == nil {
		return cmd, validation.Fail("basePrice is required", "basePrice", "required")
	}
	if r.BasePrice.IsNegative() {
		return cmd, validation.Fail("basePrice must not be negative", "basePrice", "min")
	}
	cmd.BasePrice = *r.BasePrice
	if r.DiscountType != nil {
		dt := DiscountType(*r.DiscountType)
		cmd.DiscountType = &dt
	}
	// "HH:MM" strings order the same way as the times they encode.
	if r.EndTime <= r.StartTime {
		return cmd, validation.Fail("endTime must be after startTime", "endTime", "gtfield")
	}
	if (r.BreakStart == "") != (r.BreakEnd == "") {
		return cmd, validation.Fail("breakStart and breakEnd must be given together", "breakEnd", "required_with")
	}
	if r.BreakStart != "" && r.BreakEnd <= r.BreakStart {
		return cmd, validation.Fail("breakEnd must be after breakStart", "breakEnd", "gtfield")
	}

	switch cmd.Mode {
	case ModeSingle:
		if r.Date == "" {
			return cmd, validation.Fail("date is required", "date", "required")
		}
		cmd.Date, _ = time.Parse(validation.DateLayout, r.Date)
	case ModeRecurring:
		if r.StartDate == "" || r.EndDate == "" {
			return cmd, validation.Fail("startDate and endDate are required", "startDate", "required")
		}
		if len(r.DaysOfWeek) == 0 {
			return cmd, validation.Fail("daysOfWeek is required", "daysOfWeek", "required")
		}
		cmd.StartDate, _ = time.Parse(validation.DateLayout, r.StartDate)
		cmd.EndDate, _ = time.Parse(validation.DateLayout, r.EndDate)
		cmd.DaysOfWeek = r.DaysOfWeek
	}
	return cmd, nil
}

// conflictResponse is the 409 body for colliding slots.
type conflictResponse struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error"`
	Count     int               `json:"count"`
	Conflicts []ConflictingSlot `json:"conflicts"`
}

func (h *Handler) CreateSlots(c echo.Context) error {
	var req createSlotsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	cmd, err := req.toCommand()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeDoctor(ctx, cmd.DoctorID); err != nil {
		return err
	}

	res, err := h.svc.CreateSlots(ctx, cmd)
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			return c.JSON(http.StatusConflict, conflictResponse{
				Error:     ce.Error(),
				Count:     ce.Report.Count,
				Conflicts: ce.Report.Slots,
			})
		}
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"count":     res.Count,
		"replaced":  res.Replaced,
		"tasksInfo": res.TasksInfo,
	})
}

func (h *Handler) ListSlots(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := auth.ResolveDoctor(ctx, c.QueryParam("doctorId"), true)
	if err != nil {
		return err
	}
	f := SlotFilter{DoctorID: doctorID, Status: SlotStatus(c.QueryParam("status"))}
	if !f.Status.Valid() {
		return validation.Fail("status must be available, booked or closed", "status", "oneof")
	}
	if f.From, err = queryDate(c, "startDate"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "endDate"); err != nil {
		return err
	}

	slots, err := h.svc.ListSlots(ctx, f)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(slots), "data": slots})
}

func queryDate(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(validation.DateLayout, raw)
	if err != nil {
		return nil, validation.Fail("invalid "+name+", expected YYYY-MM-DD", name, "date")
	}
	return &t, nil
}

// ownedSlot loads the slot and checks the caller may manage it.
func (h *Handler) ownedSlot(c echo.Context) (*Slot, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return nil, mapError(err)
	}
	if err := auth.AuthorizeDoctor(c.Request().Context(), sl.DoctorID); err != nil {
		return nil, err
	}
	return sl, nil
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	sl, err := h.ownedSlot(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), sl.ID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type updateSlotRequest struct {
	IsOpen *bool `json:"isOpen" validate:"required"`
}

func (h *Handler) UpdateSlot(c echo.Context) error {
	var req updateSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	sl, err := h.ownedSlot(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.SetSlotOpen(c.Request().Context(), sl.ID, *req.IsOpen)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": updated})
}

func (h *Handler) ListBookings(c echo.Context) error {
	sl, err := h.ownedSlot(c)
	if err != nil {
		return err
	}
	bookings, err := h.svc.ListBookings(c.Request().Context(), sl.ID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(bookings), "data": bookings})
}

type createBookingRequest struct {
	PatientName  string  `json:"patientName" validate:"required,max=200"`
	PatientEmail string  `json:"patientEmail" validate:"required,email"`
	PatientPhone *string `json:"patientPhone" validate:"omitempty,max=40"`
	Notes        *string `json:"notes" validate:"omitempty,max=2000"`
}

func (h *Handler) CreateBooking(c echo.Context) error {
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.svc.CreateBooking(c.Request().Context(), slotID, NewBooking{
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		Notes:        req.Notes,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": b})
}

type updateBookingRequest struct {
	Status string `json:"status" validate:"required,oneof=CONFIRMED COMPLETED CANCELLED NO_SHOW"`
}

func (h *Handler) UpdateBookingStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := h.svc.GetBooking(ctx, id)
	if err != nil {
		return mapError(err)
	}
	if err := auth.AuthorizeDoctor(ctx, current.DoctorID); err != nil {
		return err
	}
	b, err := h.svc.UpdateBookingStatus(ctx, id, BookingStatus(req.Status))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": b})
}

// mapError turns domain errors into HTTP errors. Anything unrecognised is
// returned as is and rendered as a 500.
func mapError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrNoSlotsGenerated),
		errors.Is(err, ErrNoRecurringDates), errors.Is(err, ErrInvalidDateRange),
		errors.Is(err, ErrInvalidMode), errors.Is(err, ErrInvalidTime):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrBookingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotClosed), errors.Is(err, ErrSlotFull),
		errors.Is(err, ErrInvalidStatusTransition), errors.Is(err, ErrSlotsBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

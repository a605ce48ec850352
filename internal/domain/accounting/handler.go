package accounting

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

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
	g := api.Group("/practice", auth.RequireRole(auth.RoleDoctor))

	g.GET("/sales", h.ListSales)
	g.POST("/sales", h.CreateSale)
	g.GET("/sales/:id", h.GetSale)
	g.PUT("/sales/:id", h.UpdateSale)

	g.GET("/purchases", h.ListPurchases)
	g.POST("/purchases", h.CreatePurchase)
	g.GET("/purchases/:id", h.GetPurchase)
	g.PUT("/purchases/:id", h.UpdatePurchase)

	g.GET("/ledger", h.ListLedger)
	g.POST("/ledger", h.CreateLedgerEntry)
	g.GET("/ledger/:id", h.GetLedgerEntry)
	g.PUT("/ledger/:id", h.UpdateLedgerEntry)
	g.DELETE("/ledger/:id", h.DeleteLedgerEntry)
}

// Amounts are pointers so a missing field can be told apart from zero.
type documentRequest struct {
	DoctorID     string           `json:"doctorId" validate:"omitempty,uuid"`
	ClientName   string           `json:"clientName" validate:"max=200"`
	SupplierName string           `json:"supplierName" validate:"max=200"`
	Folio        string           `json:"folio" validate:"max=50"`
	Date         string           `json:"date" validate:"required,date"`
	Total        *decimal.Decimal `json:"total"`
	AmountPaid   *decimal.Decimal `json:"amountPaid"`
	Notes        *string          `json:"notes"`
}

type ledgerRequest struct {
	DoctorID   string           `json:"doctorId" validate:"omitempty,uuid"`
	EntryType  string           `json:"entryType" validate:"required,oneof=INCOME EXPENSE"`
	Concept    string           `json:"concept" validate:"required,max=300"`
	EntryDate  string           `json:"entryDate" validate:"required,date"`
	Amount     *decimal.Decimal `json:"amount"`
	AmountPaid *decimal.Decimal `json:"amountPaid"`
	SaleID     *uuid.UUID       `json:"saleId"`
	PurchaseID *uuid.UUID       `json:"purchaseId"`
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}

// money returns the total and amount paid, defaulting paid to zero.
func money(total, paid *decimal.Decimal, totalField string) (decimal.Decimal, decimal.Decimal, error) {
	if total == nil {
		return decimal.Zero, decimal.Zero, validation.Fail(totalField+" is required", totalField, "required")
	}
	if paid == nil {
		return *total, decimal.Zero, nil
	}
	return *total, *paid, nil
}

func parseDate(raw string) time.Time {
	d, _ := time.Parse(validation.DateLayout, raw)
	return d
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// filterFrom reads the list filters shared by sales, purchases and ledger.
func filterFrom(c echo.Context) (Filter, error) {
	doctorID, err := auth.ResolveDoctor(c.Request().Context(), c.QueryParam("doctorId"), true)
	if err != nil {
		return Filter{}, err
	}
	f := Filter{
		DoctorID:      doctorID,
		PaymentStatus: PaymentStatus(c.QueryParam("paymentStatus")),
		EntryType:     EntryType(c.QueryParam("entryType")),
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return f, validation.Fail("paymentStatus must be PENDING, PARTIAL or PAID", "paymentStatus", "oneof")
	}
	if f.EntryType != "" && f.EntryType != EntryIncome && f.EntryType != EntryExpense {
		return f, validation.Fail(ErrInvalidEntryType.Error(), "entryType", "oneof")
	}
	for name, dst := range map[string]**time.Time{"startDate": &f.From, "endDate": &f.To} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(validation.DateLayout, raw)
		if err != nil {
			return f, validation.Fail("invalid "+name+", expected YYYY-MM-DD", name, "date")
		}
		*dst = &d
	}
	return f, nil
}

func emptyIfNil[T any](items []*T) []*T {
	if items == nil {
		return []*T{}
	}
	return items
}

// -- Sales --

func (h *Handler) CreateSale(c echo.Context) error {
	var req documentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	doctorID, err := auth.ResolveDoctor(c.Request().Context(), req.DoctorID, false)
	if err != nil {
		return err
	}
	total, paid, err := money(req.Total, req.AmountPaid, "total")
	if err != nil {
		return err
	}
	sl := &Sale{DoctorID: doctorID, ClientName: req.ClientName, Folio: req.Folio,
		SaleDate: parseDate(req.Date), Total: total, AmountPaid: paid, Notes: req.Notes}
	if err := h.svc.CreateSale(c.Request().Context(), sl); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": sl})
}

func (h *Handler) ownedSale(c echo.Context) (*Sale, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	sl, err := h.svc.GetSale(c.Request().Context(), id)
	if err != nil {
		return nil, mapError(err)
	}
	if err := auth.AuthorizeDoctor(c.Request().Context(), sl.DoctorID); err != nil {
		return nil, err
	}
	return sl, nil
}

func (h *Handler) GetSale(c echo.Context) error {
	sl, err := h.ownedSale(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": sl})
}

func (h *Handler) UpdateSale(c echo.Context) error {
	sl, err := h.ownedSale(c)
	if err != nil {
		return err
	}
	var req documentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	total, paid, err := money(req.Total, req.AmountPaid, "total")
	if err != nil {
		return err
	}
	sl.ClientName, sl.Folio, sl.SaleDate = req.ClientName, req.Folio, parseDate(req.Date)
	sl.Total, sl.AmountPaid, sl.Notes = total, paid, req.Notes
	if err := h.svc.UpdateSale(c.Request().Context(), sl); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": sl})
}

func (h *Handler) ListSales(c echo.Context) error {
	f, err := filterFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSales(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

// -- Purchases --

func (h *Handler) CreatePurchase(c echo.Context) error {
	var req documentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	doctorID, err := auth.ResolveDoctor(c.Request().Context(), req.DoctorID, false)
	if err != nil {
		return err
	}
	total, paid, err := money(req.Total, req.AmountPaid, "total")
	if err != nil {
		return err
	}
	p := &Purchase{DoctorID: doctorID, SupplierName: req.SupplierName, Folio: req.Folio,
		PurchaseDate: parseDate(req.Date), Total: total, AmountPaid: paid, Notes: req.Notes}
	if err := h.svc.CreatePurchase(c.Request().Context(), p); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": p})
}

func (h *Handler) ownedPurchase(c echo.Context) (*Purchase, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	p, err := h.svc.GetPurchase(c.Request().Context(), id)
	if err != nil {
		return nil, mapError(err)
	}
	if err := auth.AuthorizeDoctor(c.Request().Context(), p.DoctorID); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) GetPurchase(c echo.Context) error {
	p, err := h.ownedPurchase(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

func (h *Handler) UpdatePurchase(c echo.Context) error {
	p, err := h.ownedPurchase(c)
	if err != nil {
		return err
	}
	var req documentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	total, paid, err := money(req.Total, req.AmountPaid, "total")
	if err != nil {
		return err
	}
	p.SupplierName, p.Folio, p.PurchaseDate = req.SupplierName, req.Folio, parseDate(req.Date)
	p.Total, p.AmountPaid, p.Notes = total, paid, req.Notes
	if err := h.svc.UpdatePurchase(c.Request().Context(), p); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

func (h *Handler) ListPurchases(c echo.Context) error {
	f, err := filterFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPurchases(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

// -- Ledger --

func (r *ledgerRequest) apply(e *LedgerEntry) error {
	amount, paid, err := money(r.Amount, r.AmountPaid, "amount")
	if err != nil {
		return err
	}
	e.EntryType = EntryType(r.EntryType)
	e.Concept = r.Concept
	e.EntryDate = parseDate(r.EntryDate)
	e.Amount, e.AmountPaid = amount, paid
	e.SaleID, e.PurchaseID = r.SaleID, r.PurchaseID
	return nil
}

func (h *Handler) CreateLedgerEntry(c echo.Context) error {
	var req ledgerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	doctorID, err := auth.ResolveDoctor(c.Request().Context(), req.DoctorID, false)
	if err != nil {
		return err
	}
	e := &LedgerEntry{DoctorID: doctorID}
	if err := req.apply(e); err != nil {
		return err
	}
	if err := h.svc.CreateLedgerEntry(c.Request().Context(), e); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": e})
}

func (h *Handler) ownedEntry(c echo.Context) (*LedgerEntry, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	e, err := h.svc.GetLedgerEntry(c.Request().Context(), id)
	if err != nil {
		return nil, mapError(err)
	}
	if err := auth.AuthorizeDoctor(c.Request().Context(), e.DoctorID); err != nil {
		return nil, err
	}
	return e, nil
}

func (h *Handler) GetLedgerEntry(c echo.Context) error {
	e, err := h.ownedEntry(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": e})
}

func (h *Handler) UpdateLedgerEntry(c echo.Context) error {
	e, err := h.ownedEntry(c)
	if err != nil {
		return err
	}
	var req ledgerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.apply(e); err != nil {
		return err
	}
	res, err := h.svc.UpdateLedgerEntry(c.Request().Context(), e)
	if err != nil {
		return mapError(err)
	}
	body := echo.Map{"success": true, "data": res.Entry}
	if res.Mirrored != "" {
		body["mirrored"] = res.Mirrored
	}
	if res.MirrorError != "" {
		body["mirrorError"] = res.MirrorError
	}
	return c.JSON(http.StatusOK, body)
}

func (h *Handler) DeleteLedgerEntry(c echo.Context) error {
	e, err := h.ownedEntry(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLedgerEntry(c.Request().Context(), e.ID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *Handler) ListLedger(c echo.Context) error {
	f, err := filterFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListLedgerEntries(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNegativeAmount), errors.Is(err, ErrInvalidEntryType),
		errors.Is(err, ErrInvalidLink), errors.Is(err, ErrLinkNotFound),
		errors.Is(err, ErrNameRequired), errors.Is(err, ErrConceptRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSaleNotFound), errors.Is(err, ErrPurchaseNotFound), errors.Is(err, ErrEntryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}

package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/auth"
	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/validation"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(env.svc), env, e
}

func asDoctor(id uuid.UUID) *auth.Principal {
	return &auth.Principal{UserID: "u-doc", Role: auth.RoleDoctor, DoctorID: id}
}

var asAdmin = &auth.Principal{UserID: "u-admin", Role: auth.RoleAdmin}

func newRequest(e *echo.Echo, method, target, body string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError %d, got %T %v", code, err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
	return he
}

func slotBody(doctorID uuid.UUID, extra string) string {
	return `{"doctorId":"` + doctorID.String() + `","mode":"single","date":"2026-03-02",
		"startTime":"09:00","endTime":"12:00","duration":60,"basePrice":"1000"` + extra + `}`
}

func TestHandler_CreateSlots(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()
	c, rec := newRequest(e, http.MethodPost, "/", slotBody(doc, `,"discount":"10","discountType":"PERCENTAGE"`), asDoctor(doc))

	if err := h.CreateSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true || body["count"] != float64(3) || body["replaced"] != float64(0) {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["tasksInfo"]; !ok {
		t.Error("tasksInfo must always be present")
	}
}

func TestHandler_CreateSlots_Conflict(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()
	c, _ := newRequest(e, http.MethodPost, "/", slotBody(doc, ""), asAdmin)
	if err := h.CreateSlots(c); err != nil {
		t.Fatal(err)
	}

	c, rec := newRequest(e, http.MethodPost, "/", slotBody(doc, ""), asAdmin)
	if err := h.CreateSlots(c); err != nil {
		t.Fatalf("conflicts are written directly, got error %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body conflictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Count != 3 || len(body.Conflicts) != 3 || body.Error == "" {
		t.Errorf("unexpected conflict body: %+v", body)
	}

	c, rec = newRequest(e, http.MethodPost, "/", slotBody(doc, `,"replaceConflicts":true`), asAdmin)
	if err := h.CreateSlots(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"replaced":3`) {
		t.Errorf("expected replacement, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CreateSlots_ForbiddenForOtherDoctor(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newRequest(e, http.MethodPost, "/", slotBody(uuid.New(), ""), asDoctor(uuid.New()))
	expectHTTPError(t, h.CreateSlots(c), http.StatusForbidden)
}

func TestHandler_CreateSlots_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newRequest(e, http.MethodPost, "/", slotBody(uuid.New(), ""), nil)
	expectHTTPError(t, h.CreateSlots(c), http.StatusUnauthorized)
}

func TestHandler_CreateSlots_Validation(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"invalid duration", strings.Replace(slotBody(doc, ""), `"duration":60`, `"duration":45`, 1), "Duration must be 30 or 60 minutes"},
		{"missing duration", strings.Replace(slotBody(doc, ""), `"duration":60,`, ``, 1), "Duration must be 30 or 60 minutes"},
		{"no slots", strings.Replace(slotBody(doc, ""), `"endTime":"12:00"`, `"endTime":"09:30"`, 1), "No valid time slots generated"},
		{"missing price", strings.Replace(slotBody(doc, ""), `,"basePrice":"1000"`, "", 1), "basePrice is required"},
		{"end before start", strings.Replace(slotBody(doc, ""), `"endTime":"12:00"`, `"endTime":"08:00"`, 1), "endTime must be after startTime"},
		{"missing date", strings.Replace(slotBody(doc, ""), `"date":"2026-03-02",`, "", 1), "date is required"},
		{"bad clock", strings.Replace(slotBody(doc, ""), `"startTime":"09:00"`, `"startTime":"9am"`, 1), "validation error"},
		{"half break", slotBody(doc, `,"breakStart":"11:00"`), "breakStart and breakEnd must be given together"},
		{"no matching weekdays", `{"doctorId":"` + doc.String() + `","mode":"recurring","startDate":"2026-03-02","endDate":"2026-03-04",
			"daysOfWeek":[5,6],"startTime":"09:00","endTime":"12:00","duration":30,"basePrice":"500"}`, "No slots to create for the selected days"},
		{"weekday out of range", `{"doctorId":"` + doc.String() + `","mode":"recurring","startDate":"2026-03-02","endDate":"2026-03-04",
			"daysOfWeek":[7],"startTime":"09:00","endTime":"12:00","duration":30,"basePrice":"500"}`, "validation error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newRequest(e, http.MethodPost, "/", tt.body, asAdmin)
			he := expectHTTPError(t, h.CreateSlots(c), http.StatusBadRequest)
			if he.Message != tt.msg {
				t.Errorf("expected message %q, got %v", tt.msg, he.Message)
			}
		})
	}
}

func TestHandler_ListSlots(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()
	c, _ := newRequest(e, http.MethodPost, "/", slotBody(doc, ""), asAdmin)
	if err := h.CreateSlots(c); err != nil {
		t.Fatal(err)
	}

	c, rec := newRequest(e, http.MethodGet, "/?startDate=2026-03-01&endDate=2026-03-31&status=available", "", asDoctor(doc))
	if err := h.ListSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"count":3`) || !strings.Contains(rec.Body.String(), `"isBooked":false`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	c, _ = newRequest(e, http.MethodGet, "/?doctorId="+uuid.NewString(), "", asDoctor(doc))
	expectHTTPError(t, h.ListSlots(c), http.StatusForbidden)

	c, _ = newRequest(e, http.MethodGet, "/?status=gone", "", asAdmin)
	expectHTTPError(t, h.ListSlots(c), http.StatusBadRequest)

	c, _ = newRequest(e, http.MethodGet, "/?startDate=03-01-2026", "", asAdmin)
	expectHTTPError(t, h.ListSlots(c), http.StatusBadRequest)
}

func TestHandler_SlotOwnership(t *testing.T) {
	h, env, e := newTestHandler()
	doc := uuid.New()
	c, _ := newRequest(e, http.MethodPost, "/", slotBody(doc, ""), asAdmin)
	if err := h.CreateSlots(c); err != nil {
		t.Fatal(err)
	}
	slotID := env.slots.sorted()[0].ID.String()

	c, _ = newRequest(e, http.MethodDelete, "/", "", asDoctor(uuid.New()))
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	expectHTTPError(t, h.DeleteSlot(c), http.StatusForbidden)

	c, rec := newRequest(e, http.MethodPatch, "/", `{"isOpen":false}`, asDoctor(doc))
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	if err := h.UpdateSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"isOpen":false`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	c, rec = newRequest(e, http.MethodDelete, "/", "", asDoctor(doc))
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	if err := h.DeleteSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c, _ = newRequest(e, http.MethodDelete, "/", "", asAdmin)
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	expectHTTPError(t, h.DeleteSlot(c), http.StatusNotFound)
}

func TestHandler_BookingFlow(t *testing.T) {
	h, env, e := newTestHandler()
	doc := uuid.New()
	c, _ := newRequest(e, http.MethodPost, "/", slotBody(doc, ""), asAdmin)
	if err := h.CreateSlots(c); err != nil {
		t.Fatal(err)
	}
	slotID := env.slots.sorted()[0].ID.String()

	c, _ = newRequest(e, http.MethodPost, "/", `{"patientName":"Ana","patientEmail":"not-an-email"}`, asAdmin)
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	expectHTTPError(t, h.CreateBooking(c), http.StatusBadRequest)

	c, rec := newRequest(e, http.MethodPost, "/", `{"patientName":"Ana","patientEmail":"ana@example.com"}`, asAdmin)
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	if err := h.CreateBooking(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created struct {
		Data Booking `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	c, _ = newRequest(e, http.MethodPost, "/", `{"patientName":"Bo","patientEmail":"bo@example.com"}`, asAdmin)
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	expectHTTPError(t, h.CreateBooking(c), http.StatusConflict)

	c, rec = newRequest(e, http.MethodGet, "/", "", asDoctor(doc))
	c.SetParamNames("id")
	c.SetParamValues(slotID)
	if err := h.ListBookings(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	c, _ = newRequest(e, http.MethodPatch, "/", `{"status":"COMPLETED"}`, asDoctor(doc))
	c.SetParamNames("id")
	c.SetParamValues(created.Data.ID.String())
	expectHTTPError(t, h.UpdateBookingStatus(c), http.StatusConflict)

	c, _ = newRequest(e, http.MethodPatch, "/", `{"status":"CONFIRMED"}`, asDoctor(uuid.New()))
	c.SetParamNames("id")
	c.SetParamValues(created.Data.ID.String())
	expectHTTPError(t, h.UpdateBookingStatus(c), http.StatusForbidden)

	c, rec = newRequest(e, http.MethodPatch, "/", `{"status":"CONFIRMED"}`, asDoctor(doc))
	c.SetParamNames("id")
	c.SetParamValues(created.Data.ID.String())
	if err := h.UpdateBookingStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"CONFIRMED"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Fafulop/healthcare-platform-sub003/internal/platform/auth"
)

func newRequest(target string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestHandler_PracticeSummary(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	doc := uuid.New()
	p := &auth.Principal{UserID: "u", Role: auth.RoleDoctor, DoctorID: doc}

	for i, wantCached := range []bool{false, true} {
		c, rec := newRequest("/?startDate=2026-03-01&endDate=2026-03-31", p)
		if err := h.PracticeSummary(c); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		var body struct {
			Success bool    `json:"success"`
			Cached  bool    `json:"cached"`
			Data    Summary `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if !body.Success || body.Cached != wantCached || body.Data.DoctorID != doc {
			t.Errorf("call %d: unexpected body %s", i, rec.Body.String())
		}
	}
}

func TestHandler_PracticeSummary_Errors(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	doc := uuid.New()
	tests := []struct {
		name   string
		target string
		p      *auth.Principal
		code   int
	}{
		{"reversed range", "/?startDate=2026-03-31&endDate=2026-03-01", &auth.Principal{Role: auth.RoleDoctor, DoctorID: doc}, http.StatusBadRequest},
		{"bad date", "/?endDate=31-03-2026", &auth.Principal{Role: auth.RoleDoctor, DoctorID: doc}, http.StatusBadRequest},
		{"other doctor", "/?doctorId=" + uuid.NewString(), &auth.Principal{Role: auth.RoleDoctor, DoctorID: doc}, http.StatusForbidden},
		{"admin needs doctor", "/", &auth.Principal{Role: auth.RoleAdmin}, http.StatusBadRequest},
		{"anonymous", "/", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newRequest(tt.target, tt.p)
			err := h.PracticeSummary(c)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != tt.code {
				t.Errorf("expected %d, got %v", tt.code, err)
			}
		})
	}
}

package validation

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

type sample struct {
	Date     string `json:"date" validate:"required,date"`
	Start    string `json:"startTime" validate:"required,clock"`
	Days     []int  `json:"daysOfWeek" validate:"dive,weekday"`
	Duration int    `json:"duration" validate:"oneof=30 60"`
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	s := sample{Date: "2026-03-02", Start: "09:30", Days: []int{0, 6}, Duration: 30}
	if err := v.Struct(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidator_FieldErrors(t *testing.T) {
	v := New()
	s := sample{Date: "02/03/2026", Start: "9:30", Days: []int{7}, Duration: 45}

	err := v.Struct(s)
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	want := map[string]string{
		"date":          "date",
		"startTime":     "clock",
		"daysOfWeek[0]": "weekday",
		"duration":      "oneof",
	}
	for field, tag := range want {
		if ve.Details()[field] != tag {
			t.Errorf("expected %s to fail %q, got %v", field, tag, ve.Details())
		}
	}
}

func TestValidator_EchoIntegration(t *testing.T) {
	err := New().Validate(sample{Date: "bad"})
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", he.Code)
	}
	var ve *Error
	if !errors.As(he.Internal, &ve) {
		t.Errorf("expected internal *Error, got %T", he.Internal)
	}
}

func TestFail(t *testing.T) {
	err := Fail("end must be after start", "endTime", "gtfield")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
	if he.Internal.(*Error).Fields["endTime"] != "gtfield" {
		t.Errorf("unexpected details: %v", he.Internal)
	}
}

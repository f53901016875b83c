package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"moneymanager/internal/core"
	"moneymanager/internal/ledger"
	"moneymanager/internal/services"
	"moneymanager/internal/settings"
	"moneymanager/internal/sheets"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Message("done").
		Data(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("custom header missing")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true || body["message"] != "done" {
		t.Errorf("body = %v", body)
	}
}

func TestErrorResponseEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	UnprocessableEntityError("bad amount").Write(w)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != `{"error":"bad amount","success":false}` {
		t.Errorf("body = %s", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("add: %w", core.ErrInvalidAmount), http.StatusUnprocessableEntity},
		{core.ErrInvalidMonthKey, http.StatusUnprocessableEntity},
		{settings.ErrPasswordMismatch, http.StatusUnprocessableEntity},
		{fmt.Errorf("month 2025-01: %w", ledger.ErrNotFound), http.StatusNotFound},
		{settings.ErrWrongPassword, http.StatusUnauthorized},
		{services.ErrUnconfirmedConflicts, http.StatusConflict},
		{sheets.ErrMissingCredentials, http.StatusBadRequest},
		{fmt.Errorf("%w: dial tcp", sheets.ErrTargetUnavailable), http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestErrorForHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFor(errors.New("sqlite: database is locked")).Write(w)
	if w.Code != http.StatusInternalServerError || w.Body.String() != `{"error":"internal error","success":false}` {
		t.Errorf("got %d %s", w.Code, w.Body.String())
	}
}

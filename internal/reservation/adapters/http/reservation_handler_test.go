package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// Input-validation paths reject before any collaborator is touched, so the
// handler is wired with nil dependencies.
func newReservationRouter(t *testing.T) *chi.Mux {
	t.Helper()
	handler := NewReservationHandler(nil, nil, nil, nil, handlerTestLogger())
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestReservationHandler_Create_InvalidBody(t *testing.T) {
	r := newReservationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationHandler_Create_InvalidIDs(t *testing.T) {
	r := newReservationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/reservations",
		strings.NewReader(`{"user_id":"not-a-uuid","offering_id":"also-bad"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id")
}

func TestReservationHandler_Get_InvalidID(t *testing.T) {
	r := newReservationRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/reservations/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationHandler_Cancel_RequiresUserID(t *testing.T) {
	r := newReservationRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/reservations/0b6d6f2e-4d3f-4f4e-9f8a-0a1b2c3d4e5f", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id")
}

func TestReservationHandler_Credit_ValidatesAmountAndKind(t *testing.T) {
	r := newReservationRouter(t)
	base := "/users/0b6d6f2e-4d3f-4f4e-9f8a-0a1b2c3d4e5f/credits"

	tests := []struct {
		name string
		body string
	}{
		{"non-numeric amount", `{"amount":"lots","kind":"topup"}`},
		{"negative amount", `{"amount":"-5","kind":"topup"}`},
		{"zero amount", `{"amount":"0","kind":"topup"}`},
		{"purchase not creditable", `{"amount":"5","kind":"purchase"}`},
		{"unknown kind", `{"amount":"5","kind":"winnings"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, base, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

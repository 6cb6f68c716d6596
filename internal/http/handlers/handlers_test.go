// README: Handler tests over in-memory service doubles.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/http/handlers"
	"shuttle/internal/http/middleware"
	"shuttle/internal/infra"
	"shuttle/internal/modules/allocation"
	"shuttle/internal/modules/crew"
	"shuttle/internal/modules/horizon"
	"shuttle/internal/modules/journey"
	"shuttle/internal/modules/order"
	"shuttle/internal/modules/pricing"
	"shuttle/internal/modules/quote"
	"shuttle/internal/types"
)

type stubQuoter struct {
	res pricing.Result
	err error
	got pricing.Request
}

func (s *stubQuoter) Quote(_ context.Context, req pricing.Request) (pricing.Result, error) {
	s.got = req
	return s.res, s.err
}

type stubOrders struct {
	checkout order.CheckoutResult
	order    *order.Order
	err      error
	cmd      order.CheckoutCommand
}

func (s *stubOrders) Checkout(_ context.Context, cmd order.CheckoutCommand) (order.CheckoutResult, error) {
	s.cmd = cmd
	return s.checkout, s.err
}
func (s *stubOrders) Get(context.Context, types.ID) (*order.Order, error) { return s.order, s.err }
func (s *stubOrders) MarkPaid(context.Context, types.ID) error            { return s.err }
func (s *stubOrders) Cancel(context.Context, types.ID, string, string) error {
	return s.err
}
func (s *stubOrders) Refund(context.Context, types.ID) error { return s.err }

type stubManifests struct {
	manifests  []allocation.Manifest
	err        error
	operatorID types.ID
}

func (s *stubManifests) Manifest(_ context.Context, operatorID, _, _ types.ID) ([]allocation.Manifest, error) {
	s.operatorID = operatorID
	return s.manifests, s.err
}
func (s *stubManifests) OperatorSeating(_ context.Context, operatorID, _ types.ID) (allocation.Seating, error) {
	s.operatorID = operatorID
	return allocation.Seating{Manifests: s.manifests}, s.err
}
func (s *stubManifests) Commit(_ context.Context, operatorID, _, _ types.ID) (allocation.Manifest, error) {
	s.operatorID = operatorID
	if s.err != nil {
		return allocation.Manifest{}, s.err
	}
	return s.manifests[0], nil
}

type stubHorizons struct {
	err        error
	operatorID types.ID
}

func (s *stubHorizons) Classify(_ context.Context, id types.ID) (journey.Journey, journey.Horizon, error) {
	return journey.Journey{ID: id, DepartureTS: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), IsActive: true}, journey.HorizonPrep, s.err
}
func (s *stubHorizons) Evaluate(_ context.Context, id types.ID) (horizon.Report, error) {
	return horizon.Report{JourneyID: id, Horizon: journey.HorizonConfirming}, s.err
}
func (s *stubHorizons) RemoveVehicle(_ context.Context, operatorID, _, _ types.ID) error {
	s.operatorID = operatorID
	return s.err
}

type stubCrews struct{}

func (stubCrews) Rotate(context.Context, types.ID, types.ID) ([]crew.Pick, error) { return nil, nil }
func (stubCrews) Act(_ context.Context, staffID, id types.ID, action crew.Action) (crew.Assignment, error) {
	if staffID != "s-1" {
		return crew.Assignment{}, crew.ErrForbidden
	}
	switch action {
	case crew.ActionConfirm:
		return crew.Assignment{ID: id, StaffID: staffID, Status: crew.StatusConfirmed}, nil
	case crew.ActionDecline:
		return crew.Assignment{}, crew.ErrInvalidState
	}
	return crew.Assignment{}, crew.ErrBadAction
}

type stubOrderTokens struct{}

func (stubOrderTokens) IssueOrderToken(orderID string) (string, error) {
	return "order-token-" + orderID, nil
}

// stubVerifier accepts any bearer value and returns a fixed token.
type stubVerifier struct{ tok infra.Token }

func (s stubVerifier) VerifyToken(context.Context, string) (*infra.Token, error) {
	tok := s.tok
	return &tok, nil
}

func operatorAuth(id string) gin.HandlerFunc {
	return middleware.Auth(stubVerifier{tok: infra.Token{Scope: infra.ScopeOperator, OperatorID: id}})
}

func staffAuth(id string) gin.HandlerFunc {
	return middleware.Auth(stubVerifier{tok: infra.Token{Scope: infra.ScopeStaff, StaffID: id}})
}

func orderAuth(id string) gin.HandlerFunc {
	return middleware.Auth(stubVerifier{tok: infra.Token{Scope: infra.ScopeOrder, OrderID: id}})
}

func doRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestQuoteAvailable(t *testing.T) {
	q := &stubQuoter{res: pricing.Result{
		Availability:     pricing.Available,
		JourneyID:        "j-1",
		VehicleID:        "v-a",
		PerSeat:          pricing.SeatPrice{Base: 400, Tax: 40, Fees: 60, Total: 500},
		Currency:         "EUR",
		Token:            "tok",
		ExpiresAt:        time.Now().Add(15 * time.Minute),
		RemainingAtPrice: 4,
		MaxQtyAtPrice:    4,
	}}
	r := newEngine()
	h := handlers.NewQuoteHandler(q)
	r.GET("/quotes", h.Quote)

	w := doRequest(r, http.MethodGet, "/quotes?route_id=r-1&date=2026-07-01&qty=2&vehicle_id=v-a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["availability"] != "available" || body["token"] != "tok" {
		t.Fatalf("unexpected body %v", body)
	}
	price := body["per_seat_price"].(map[string]any)
	if price["total"].(float64) != 500 {
		t.Fatalf("per seat total = %v", price["total"])
	}
	if q.got.Qty != 2 || q.got.VehicleID != "v-a" || q.got.Date != "2026-07-01" {
		t.Fatalf("request not forwarded: %+v", q.got)
	}
}

func TestQuoteUnavailableIsNotAnError(t *testing.T) {
	r := newEngine()
	h := handlers.NewQuoteHandler(&stubQuoter{res: pricing.Result{Availability: pricing.InsufficientCapacity, MaxQtyAtPrice: 3}})
	r.POST("/quotes", h.Quote)

	w := doRequest(r, http.MethodPost, "/quotes", map[string]any{"route_id": "r-1", "date": "2026-07-01", "qty": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["availability"] != string(pricing.InsufficientCapacity) || body["max_qty_at_price"].(float64) != 3 {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["token"]; ok {
		t.Fatal("no token expected when unavailable")
	}
}

func TestQuoteBadRequest(t *testing.T) {
	r := newEngine()
	h := handlers.NewQuoteHandler(&stubQuoter{err: pricing.ErrBadRequest})
	r.GET("/quotes", h.Quote)

	for _, path := range []string{
		"/quotes?route_id=r-1&date=2026-07-01",
		"/quotes?route_id=r-1&date=2026-07-01&qty=0",
		"/quotes?route_id=r!1&date=2026-07-01&qty=1",
		"/quotes?route_id=r-1&date=07/01&qty=1",
	} {
		if w := doRequest(r, http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func checkoutBody() map[string]any {
	return map[string]any{
		"route_id": "r-1",
		"date":     "2026-07-01",
		"qty":      2,
		"token":    "tok",
		"passengers": []map[string]any{
			{"first_name": "Ada", "last_name": "L"},
			{"first_name": "Bo", "last_name": "K", "is_lead": true},
		},
		"lead": map[string]any{"name": "Bo K", "email": "bo@example.com"},
	}
}

func TestCheckoutOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{name: "created", status: http.StatusCreated, check: func(t *testing.T, body map[string]any) {
			if body["redirect"] != "/checkout/o-1/pay" || body["amount"].(float64) != 1000 || body["order_token"] != "order-token-o-1" {
				t.Fatalf("unexpected body %v", body)
			}
		}},
		{name: "invalid quote", err: quote.ErrInvalid, status: http.StatusUnprocessableEntity, check: func(t *testing.T, body map[string]any) {
			if body["error"] != "quote invalid or expired" {
				t.Fatalf("unexpected error %v", body["error"])
			}
		}},
		{name: "capacity", err: &order.CapacityError{Remaining: 1}, status: http.StatusConflict, check: func(t *testing.T, body map[string]any) {
			if body["remaining"].(float64) != 1 {
				t.Fatalf("remaining = %v", body["remaining"])
			}
		}},
		{name: "bad request", err: order.ErrBadRequest, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrders{err: tc.err, checkout: order.CheckoutResult{
				OrderID: "o-1", Redirect: "/checkout/o-1/pay", Amount: types.Money{Amount: 1000, Currency: "EUR"},
			}}
			r := newEngine()
			r.POST("/checkout", handlers.NewOrderHandler(svc, stubOrderTokens{}).Checkout)

			w := doRequest(r, http.MethodPost, "/checkout", checkoutBody())
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.check != nil {
				tc.check(t, decode(t, w))
			}
			if len(svc.cmd.Passengers) != 2 || svc.cmd.Lead.Email != "bo@example.com" {
				t.Fatalf("command not forwarded: %+v", svc.cmd)
			}
		})
	}
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	r := newEngine()
	r.POST("/checkout", handlers.NewOrderHandler(&stubOrders{}, stubOrderTokens{}).Checkout)
	body := checkoutBody()
	delete(body, "token")
	if w := doRequest(r, http.MethodPost, "/checkout", body); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOrderRoutes(t *testing.T) {
	paid := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	o := &order.Order{
		ID: "o-1", Status: order.StatusPaid, Qty: 2, Currency: "EUR",
		Price: order.SeatPrice{Base: 400, Tax: 40, Fees: 60, Total: 500}, PaidAt: &paid,
	}
	cases := []struct {
		name   string
		method string
		path   string
		holder string
		err    error
		status int
	}{
		{"get", http.MethodGet, "/orders/o-1", "o-1", nil, http.StatusOK},
		{"get missing", http.MethodGet, "/orders/o-2", "o-2", order.ErrNotFound, http.StatusNotFound},
		{"get foreign order", http.MethodGet, "/orders/o-2", "o-1", nil, http.StatusForbidden},
		{"get invalid id", http.MethodGet, "/orders/o!2", "o-1", nil, http.StatusBadRequest},
		{"paid", http.MethodPost, "/orders/o-1/paid", "", nil, http.StatusOK},
		{"paid over capacity", http.MethodPost, "/orders/o-1/paid", "", order.ErrCapacity, http.StatusConflict},
		{"cancel terminal", http.MethodPost, "/orders/o-1/cancel", "o-1", order.ErrInvalidState, http.StatusConflict},
		{"cancel foreign order", http.MethodPost, "/orders/o-1/cancel", "o-9", nil, http.StatusForbidden},
		{"refund", http.MethodPost, "/orders/o-1/refund", "", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := handlers.NewOrderHandler(&stubOrders{order: o, err: tc.err}, stubOrderTokens{})
			r := newEngine()
			holder := r.Group("/", orderAuth(tc.holder))
			holder.GET("/orders/:id", h.Get)
			holder.POST("/orders/:id/cancel", h.Cancel)
			r.POST("/orders/:id/paid", h.MarkPaid)
			r.POST("/orders/:id/refund", h.Refund)
			if w := doRequest(r, tc.method, tc.path, nil); w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}

	h := handlers.NewOrderHandler(&stubOrders{order: o}, stubOrderTokens{})
	r := newEngine()
	r.GET("/orders/:id", orderAuth("o-1"), h.Get)
	body := decode(t, doRequest(r, http.MethodGet, "/orders/o-1", nil))
	if body["amount_due"].(float64) != 1000 || body["status"] != "paid" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRemoveVehicle(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"removed", nil, http.StatusOK},
		{"foreign vehicle", horizon.ErrForbidden, http.StatusForbidden},
		{"locked", horizon.ErrLocked, http.StatusConflict},
		{"infeasible", &horizon.FeasibilityError{VehicleID: "v-a", Seats: 4, Spare: 1}, http.StatusUnprocessableEntity},
		{"unknown journey", journey.ErrJourneyNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hz := &stubHorizons{err: tc.err}
			r := newEngine()
			op := r.Group("/", operatorAuth("op-1"))
			op.DELETE("/operator/journeys/:id/vehicles/:vehicle_id", handlers.NewOperatorHandler(hz).RemoveVehicle)

			w := doRequest(r, http.MethodDelete, "/operator/journeys/j-1/vehicles/v-a", nil)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if hz.operatorID != "op-1" {
				t.Fatalf("operator id = %q", hz.operatorID)
			}
			if tc.status == http.StatusUnprocessableEntity && !strings.Contains(w.Body.String(), "spare") {
				t.Fatalf("feasibility reason missing: %s", w.Body.String())
			}
		})
	}
}

func manifestFixture() []allocation.Manifest {
	return []allocation.Manifest{{
		JourneyID: "j-1", VehicleID: "v-a", Vehicle: "Aurora", Capacity: 10,
		Source: allocation.SourcePreview, SeatsTotal: 2,
		Parties: []allocation.PartyDetail{{OrderID: "o-1", Size: 2, LeadName: "Bo K", Passengers: []string{"Ada L", "Bo K"}}},
	}}
}

func TestManifestAndPDF(t *testing.T) {
	r := newEngine()
	alloc := &stubManifests{manifests: manifestFixture()}
	h := handlers.NewJourneyHandler(alloc, &stubHorizons{})
	op := r.Group("/", operatorAuth("op-1"))
	op.GET("/journeys/:id/manifest", h.Manifest)
	op.GET("/journeys/:id/manifest.pdf", h.ManifestPDF)
	op.POST("/journeys/:id/vehicles/:vehicle_id/commit", h.Commit)

	w := doRequest(r, http.MethodGet, "/journeys/j-1/manifest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("manifest: %d", w.Code)
	}
	body := decode(t, w)
	if len(body["manifests"].([]any)) != 1 || len(body["unassigned"].([]any)) != 0 {
		t.Fatalf("unexpected manifest body %v", body)
	}
	if alloc.operatorID != "op-1" {
		t.Fatalf("manifest not scoped to the caller: %q", alloc.operatorID)
	}

	w = doRequest(r, http.MethodGet, "/journeys/j-1/manifest.pdf?vehicle_id=v-a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pdf: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("expected a pdf document")
	}

	w = doRequest(r, http.MethodPost, "/journeys/j-1/vehicles/v-a/commit", nil)
	if w.Code != http.StatusOK || decode(t, w)["vehicle_id"] != "v-a" {
		t.Fatalf("commit: %d %s", w.Code, w.Body.String())
	}
}

func TestManifestAndCommitForeignVehicle(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		err    error
		status int
	}{
		{"read foreign manifest", http.MethodGet, "/journeys/j-1/manifest?vehicle_id=v-b", allocation.ErrForbidden, http.StatusForbidden},
		{"print foreign manifest", http.MethodGet, "/journeys/j-1/manifest.pdf?vehicle_id=v-b", allocation.ErrForbidden, http.StatusForbidden},
		{"commit foreign vehicle", http.MethodPost, "/journeys/j-1/vehicles/v-b/commit", allocation.ErrForbidden, http.StatusForbidden},
		{"commit over capacity", http.MethodPost, "/journeys/j-1/vehicles/v-a/commit", allocation.ErrCapacity, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alloc := &stubManifests{err: tc.err}
			h := handlers.NewJourneyHandler(alloc, &stubHorizons{})
			r := newEngine()
			op := r.Group("/", operatorAuth("op-2"))
			op.GET("/journeys/:id/manifest", h.Manifest)
			op.GET("/journeys/:id/manifest.pdf", h.ManifestPDF)
			op.POST("/journeys/:id/vehicles/:vehicle_id/commit", h.Commit)
			if w := doRequest(r, tc.method, tc.path, nil); w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if alloc.operatorID != "op-2" {
				t.Fatalf("operator id = %q", alloc.operatorID)
			}
		})
	}
}

func TestManifestUnknownVehicle(t *testing.T) {
	r := newEngine()
	h := handlers.NewJourneyHandler(&stubManifests{err: allocation.ErrVehicleNotFound}, &stubHorizons{})
	r.GET("/journeys/:id/manifest", h.Manifest)
	if w := doRequest(r, http.MethodGet, "/journeys/j-1/manifest?vehicle_id=v-z", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHorizonReport(t *testing.T) {
	r := newEngine()
	r.GET("/journeys/:id/horizon", handlers.NewJourneyHandler(&stubManifests{}, &stubHorizons{}).Horizon)
	w := doRequest(r, http.MethodGet, "/journeys/j-1/horizon", nil)
	if w.Code != http.StatusOK || decode(t, w)["horizon"] != "confirming" {
		t.Fatalf("unexpected %d %s", w.Code, w.Body.String())
	}
}

func TestCrewAct(t *testing.T) {
	h := handlers.NewCrewHandler(stubCrews{})
	lead, other := newEngine(), newEngine()
	lead.POST("/crew/assignments/:id/:action", staffAuth("s-1"), h.Act)
	other.POST("/crew/assignments/:id/:action", staffAuth("s-2"), h.Act)

	cases := []struct {
		r      *gin.Engine
		path   string
		status int
	}{
		{lead, "/crew/assignments/a-1/confirm", http.StatusOK},
		{lead, "/crew/assignments/a-1/decline", http.StatusConflict},
		{lead, "/crew/assignments/a-1/maybe", http.StatusBadRequest},
		{other, "/crew/assignments/a-1/confirm", http.StatusForbidden},
	}
	for _, tc := range cases {
		if w := doRequest(tc.r, http.MethodPost, tc.path, nil); w.Code != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.status, w.Code)
		}
	}
}

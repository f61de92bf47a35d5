package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"driveshare/internal/app/commands"
	listingapp "driveshare/internal/app/handlers/listing"
	reservationapp "driveshare/internal/app/handlers/reservation"
	"driveshare/internal/app/middleware"
	"driveshare/internal/app/queries"
	authsvc "driveshare/internal/app/services/auth"
	"driveshare/internal/infra/config"
	"driveshare/internal/infra/obs"
	"driveshare/internal/infra/security"
	"driveshare/internal/infra/storage/memory"
)

// buildTestServer wires the full API against in-memory stores, the same shape
// the binary uses when no Mongo URI is configured.
func buildTestServer(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	listings := memory.NewListingRepository()
	reservations := memory.NewReservationRepository()
	users := memory.NewUserRepository()
	factory := memory.Factory{
		ListingRepo:     listings,
		ReservationRepo: reservations,
		UserRepo:        users,
	}
	box := memory.NewOutbox()

	authService := &authsvc.Service{
		Users:    users,
		Password: security.BcryptHasher{},
		Tokens:   security.JWTManager{Secret: []byte("test-secret")},
		TokenTTL: time.Hour,
		Logger:   logger,
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, reservationapp.CreateReservationCommand{}.Key(),
		&reservationapp.CreateReservationHandler{UoWFactory: factory, Outbox: box})
	commands.RegisterHandler(commandBus, reservationapp.CancelReservationCommand{}.Key(),
		&reservationapp.CancelReservationHandler{UoWFactory: factory, Outbox: box})
	commands.RegisterHandler(commandBus, listingapp.CreateListingCommand{}.Key(),
		&listingapp.CreateListingHandler{UoWFactory: factory})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, reservationapp.CheckAvailabilityQuery{}.Key(),
		&reservationapp.CheckAvailabilityHandler{UoWFactory: factory})
	listHandler := &reservationapp.ListReservationsHandler{UoWFactory: factory, Logger: logger}
	queries.RegisterHandler(queryBus, reservationapp.ListRenterReservationsQuery{}.Key(),
		reservationapp.RenterReservationsHandler{ListReservationsHandler: listHandler})
	queries.RegisterHandler(queryBus, reservationapp.ListOwnerReservationsQuery{}.Key(),
		reservationapp.OwnerReservationsHandler{ListReservationsHandler: listHandler})
	queries.RegisterHandler(queryBus, listingapp.SearchCatalogQuery{}.Key(),
		&listingapp.SearchCatalogHandler{UoWFactory: factory})
	queries.RegisterHandler(queryBus, listingapp.GetListingQuery{}.Key(),
		&listingapp.GetListingHandler{UoWFactory: factory})

	cmdBus := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(memory.NewIdempotencyStore(), nil),
		middleware.Transaction(factory, nil),
		middleware.OutboxFlush(box),
	)
	qryBus := middleware.ChainQueries(queryBus)

	cfg := config.Config{Env: "test", HTTPAddr: ":0"}
	srv := NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Booking: BookingHandler{Commands: cmdBus, Queries: qryBus},
		Listing: ListingHandler{Commands: cmdBus, Queries: qryBus},
		Auth:    AuthHandler{Service: authService, Logger: logger},
		AuthMiddleware: AuthMiddleware{Service: authService, Logger: logger}.Handle,
	})
	return srv.Handler
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func registerUser(t *testing.T, h http.Handler, email string, host bool) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":        email,
		"name":         "Test User",
		"password":     "s3cretpass",
		"want_to_host": host,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register %s: no token in %v", email, body)
	}
	return token
}

func createListing(t *testing.T, h http.Handler, ownerToken string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/listings", ownerToken, map[string]any{
		"title": "Compact city car",
		"vehicle": map[string]any{
			"type":  "car",
			"brand": "Toyota",
			"model": "Yaris",
			"year":  2022,
			"seats": 5,
		},
		"location":      map[string]any{"city": "Austin", "country": "US"},
		"price_per_day": 5000,
		"currency":      "USD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create listing: status %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create listing: no id in %v", body)
	}
	return id
}

func bookingBody(listingID string, startDay, endDay int) map[string]any {
	return map[string]any{
		"listing_id": listingID,
		"start":      fmt.Sprintf("2026-01-%02dT00:00:00Z", startDay),
		"end":        fmt.Sprintf("2026-01-%02dT00:00:00Z", endDay),
		"contact": map[string]any{
			"name":  "Jane Doe",
			"email": "jane@example.com",
			"phone": "+15550001111",
		},
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := buildTestServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d; want 200", path, rec.Code)
		}
	}
}

func TestBookingRequiresAuth(t *testing.T) {
	h := buildTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/bookings", "", bookingBody("lst-1", 1, 5))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated booking: status %d; want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/bookings", "not-a-token", bookingBody("lst-1", 1, 5))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token booking: status %d; want 401", rec.Code)
	}
}

func TestBookingFlow(t *testing.T) {
	h := buildTestServer(t)
	ownerToken := registerUser(t, h, "owner@example.com", true)
	renterToken := registerUser(t, h, "renter@example.com", false)
	listingID := createListing(t, h, ownerToken)

	// Check availability before anything is booked.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/bookings/check-availability", "", map[string]any{
		"listing_id": listingID,
		"start":      "2026-01-01T00:00:00Z",
		"end":        "2026-01-05T00:00:00Z",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check-availability: status %d body %s", rec.Code, rec.Body.String())
	}
	if avail := decodeBody(t, rec); avail["available"] != true {
		t.Errorf("availability = %v; want available", avail)
	}

	// Book four nights at 5000 cents/day.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/bookings", renterToken, bookingBody(listingID, 1, 5))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking: status %d body %s", rec.Code, rec.Body.String())
	}
	booked := decodeBody(t, rec)
	if booked["status"] != "confirmed" {
		t.Errorf("status = %v; want confirmed", booked["status"])
	}
	snapshot, _ := booked["pricing_snapshot"].(map[string]any)
	if snapshot == nil {
		t.Fatalf("no pricing_snapshot in %v", booked)
	}
	total, _ := snapshot["total"].(map[string]any)
	if total["amount"] != float64(22_000) {
		t.Errorf("total = %v; want 22000", total["amount"])
	}

	// Same range again conflicts and reports the blocking range.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/bookings", renterToken, bookingBody(listingID, 3, 7))
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlapping booking: status %d body %s", rec.Code, rec.Body.String())
	}
	conflictBody := decodeBody(t, rec)
	if conflictBody["code"] != "conflict" {
		t.Errorf("conflict code = %v", conflictBody["code"])
	}
	conflicts, _ := conflictBody["conflicts"].([]any)
	if len(conflicts) != 1 {
		t.Errorf("conflicts = %v; want 1 range", conflictBody["conflicts"])
	}

	// Back-to-back is fine.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/bookings", renterToken, bookingBody(listingID, 5, 8))
	if rec.Code != http.StatusCreated {
		t.Errorf("adjacent booking: status %d body %s", rec.Code, rec.Body.String())
	}

	// The renter sees both bookings; the owner sees them too.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/bookings", renterToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list bookings: status %d", rec.Code)
	}
	mine := decodeBody(t, rec)
	if items, _ := mine["items"].([]any); len(items) != 2 {
		t.Errorf("renter bookings = %v; want 2", mine["items"])
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/bookings/owner", ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner bookings: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCancelAndRebook(t *testing.T) {
	h := buildTestServer(t)
	ownerToken := registerUser(t, h, "owner@example.com", true)
	renterToken := registerUser(t, h, "renter@example.com", false)
	otherToken := registerUser(t, h, "other@example.com", false)
	listingID := createListing(t, h, ownerToken)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/bookings", renterToken, bookingBody(listingID, 1, 5))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking: status %d body %s", rec.Code, rec.Body.String())
	}
	bookingID, _ := decodeBody(t, rec)["id"].(string)

	// Only the renter may cancel.
	rec = doJSON(t, h, http.MethodPatch, "/api/v1/bookings/"+bookingID+"/cancel", otherToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cancel by stranger: status %d; want 403", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/bookings/"+bookingID+"/cancel", renterToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d body %s", rec.Code, rec.Body.String())
	}

	// Cancelling twice is an invalid transition, a client error.
	rec = doJSON(t, h, http.MethodPatch, "/api/v1/bookings/"+bookingID+"/cancel", renterToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("double cancel: status %d; want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "invalid_transition" {
		t.Errorf("double cancel code = %v; want invalid_transition", body["code"])
	}

	// The freed range can be booked again.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/bookings", otherToken, bookingBody(listingID, 1, 5))
	if rec.Code != http.StatusCreated {
		t.Errorf("rebook after cancel: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestListingRoutesAndRoles(t *testing.T) {
	h := buildTestServer(t)
	ownerToken := registerUser(t, h, "owner@example.com", true)
	renterToken := registerUser(t, h, "renter@example.com", false)

	// A renter without the owner role cannot create listings.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/listings", renterToken, map[string]any{"title": "nope"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("create listing as renter: status %d; want 403", rec.Code)
	}

	listingID := createListing(t, h, ownerToken)

	// Catalog and detail are public.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/listings?city=Austin", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("catalog: status %d", rec.Code)
	}
	catalog := decodeBody(t, rec)
	if items, _ := catalog["items"].([]any); len(items) != 1 {
		t.Errorf("catalog items = %v; want 1", catalog["items"])
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/listings/"+listingID, "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("listing detail: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/listings/lst-missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing listing: status %d; want 404", rec.Code)
	}
}

func TestAuthEndpoints(t *testing.T) {
	h := buildTestServer(t)

	token := registerUser(t, h, "user@example.com", false)

	// Duplicate email is rejected.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    "user@example.com",
		"name":     "Another",
		"password": "s3cretpass",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: status %d; want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "user@example.com",
		"password": "s3cretpass",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "user@example.com",
		"password": "wrongpass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login: status %d; want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", rec.Code, rec.Body.String())
	}
	me := decodeBody(t, rec)
	if me["email"] != "user@example.com" {
		t.Errorf("me email = %v", me["email"])
	}
}

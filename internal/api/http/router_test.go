package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/waitlist-service/internal/api/dto"
	"github.com/spec-kit/waitlist-service/internal/api/http/handlers"
	"github.com/spec-kit/waitlist-service/internal/config"
	"github.com/spec-kit/waitlist-service/internal/events"
	"github.com/spec-kit/waitlist-service/internal/persistence"
	"github.com/spec-kit/waitlist-service/internal/repository"
	"github.com/spec-kit/waitlist-service/internal/service"
	"github.com/spec-kit/waitlist-service/internal/ws"
)

func newTestApp(t *testing.T) (*fiber.App, *service.WaitlistService) {
	t.Helper()
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher()
	repo := repository.NewMemoryPartyRepository()

	cfg := config.WaitlistConfig{Capacity: 10, ServiceSecondsPerGuest: 1, CheckinTimeoutSeconds: 60}
	engine := service.NewWaitlistService(cfg, service.WaitlistDependencies{
		PartyRepo:  repo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	t.Cleanup(engine.Close)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, nil, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler("waitlist-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Waitlist: handlers.NewWaitlistHandler(engine),
		Hub:      ws.NewHub(engine, dispatcher, logger),
	})
	return app, engine
}

func postJoin(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/waitlist", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestJoinEndpointCreatesParty(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postJoin(t, app, `{"name":"Alice","partySize":4,"clientId":"client-a"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var join dto.JoinWaitlistResponse
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if join.PartyID == "" {
		t.Error("response missing partyId")
	}
	if join.Message != "Successfully joined waitlist!" {
		t.Errorf("message = %q", join.Message)
	}

	// Sole party on an empty list is called straight away.
	if join.Status != "ready_to_checkin" {
		t.Errorf("status = %q, want ready_to_checkin", join.Status)
	}
}

func TestJoinEndpointRejectsMissingFields(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"partySize":4,"clientId":"c1"}`},
		{"missing client id", `{"name":"Ann","partySize":4}`},
		{"zero party size", `{"name":"Ann","partySize":0,"clientId":"c1"}`},
		{"oversized party", `{"name":"Ann","partySize":99,"clientId":"c1"}`},
		{"malformed json", `{"name":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJoin(t, app, tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
			var errBody struct {
				Message string `json:"message"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if errBody.Message == "" {
				t.Error("error body missing message")
			}
		})
	}
}

func TestJoinEndpointIsIdempotent(t *testing.T) {
	app, _ := newTestApp(t)

	first := postJoin(t, app, `{"name":"Bob","partySize":2,"clientId":"client-b"}`)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first status = %d, want %d", first.StatusCode, http.StatusCreated)
	}
	var firstJoin dto.JoinWaitlistResponse
	if err := json.NewDecoder(first.Body).Decode(&firstJoin); err != nil {
		t.Fatalf("decode: %v", err)
	}

	second := postJoin(t, app, `{"name":"Bob","partySize":2,"clientId":"client-b"}`)
	if second.StatusCode != http.StatusCreated {
		t.Fatalf("second status = %d, want %d", second.StatusCode, http.StatusCreated)
	}
	var secondJoin dto.JoinWaitlistResponse
	if err := json.NewDecoder(second.Body).Decode(&secondJoin); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if secondJoin.PartyID != firstJoin.PartyID {
		t.Errorf("second partyId = %s, want %s", secondJoin.PartyID, firstJoin.PartyID)
	}
	if secondJoin.Message != "You are already on the waitlist!" {
		t.Errorf("second message = %q", secondJoin.Message)
	}
}

func TestGetPartyEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postJoin(t, app, `{"name":"Carol","partySize":3,"clientId":"client-c"}`)
	var join dto.JoinWaitlistResponse
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/waitlist/"+join.PartyID, nil)
	got, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", got.StatusCode, http.StatusOK)
	}
	var party dto.PartyResponse
	if err := json.NewDecoder(got.Body).Decode(&party); err != nil {
		t.Fatalf("decode party: %v", err)
	}
	if party.ID != join.PartyID || party.Name != "Carol" || party.PartySize != 3 {
		t.Errorf("party = %+v", party)
	}
}

func TestGetPartyEndpointNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/waitlist/does-not-exist", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	var errBody struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Message != "party not found" {
		t.Errorf("message = %q, want %q", errBody.Message, "party not found")
	}
}

func TestLivenessEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestReadinessReportsMissingBroker(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d without a reachable broker", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

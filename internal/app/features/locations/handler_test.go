package locations_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/crewhub/internal/app/features/locations"
	"github.com/dalemusser/crewhub/internal/app/realtime"
	locationstore "github.com/dalemusser/crewhub/internal/app/store/locations"
	userstore "github.com/dalemusser/crewhub/internal/app/store/users"
	"github.com/dalemusser/crewhub/internal/testutil"
)

// nopSender satisfies realtime.Sender for connections the test never
// reads from.
type nopSender struct{}

func (nopSender) Send(v any) {}

type listResponse struct {
	Count     int `json:"count"`
	Locations []struct {
		UserID    string    `json:"user_id"`
		Name      string    `json:"name"`
		AvatarURL string    `json:"avatar_url"`
		Status    string    `json:"status"`
		Lat       float64   `json:"lat"`
		Lng       float64   `json:"lng"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"locations"`
}

func serveList(t *testing.T, h *locations.Handler) listResponse {
	t.Helper()

	req := httptest.NewRequest("GET", "/api/locations", nil)
	rec := httptest.NewRecorder()
	h.ServeList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
	return resp
}

func TestServeList_MergesLiveAndStored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	locStore := locationstore.New(db)
	users := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	alice := fx.CreateUser(ctx, "Alice Example")
	bob := fx.CreateUser(ctx, "Bob Example")

	// Bob shared a location on a previous session and is now offline.
	fx.CreateLocation(ctx, bob.ID, 41.0, -75.0)
	// Alice has a stale stored row that her live entry must shadow.
	fx.CreateLocation(ctx, alice.ID, 10.0, 10.0)

	svc := realtime.NewService(locStore, zap.NewNop(), realtime.Options{})
	svc.Register("conn-1", nopSender{})
	svc.Join("conn-1", alice.ID.Hex())
	svc.Heartbeat(alice.ID.Hex(), &realtime.Coordinates{Lat: 40.0, Lng: -74.0})

	h := locations.NewHandler(svc, locStore, users, zap.NewNop())
	resp := serveList(t, h)

	if resp.Count != 2 {
		t.Fatalf("count: got %d, want 2", resp.Count)
	}
	rows := make(map[string]int)
	for i, row := range resp.Locations {
		rows[row.UserID] = i
	}

	ai, ok := rows[alice.ID.Hex()]
	if !ok {
		t.Fatal("alice missing from response")
	}
	got := resp.Locations[ai]
	if got.Status != string(realtime.StatusOnline) {
		t.Errorf("alice status: got %q, want online", got.Status)
	}
	if got.Lat != 40.0 || got.Lng != -74.0 {
		t.Errorf("alice should use her live position, got (%v, %v)", got.Lat, got.Lng)
	}
	if got.Name != "Alice Example" {
		t.Errorf("alice name: got %q, want decorated full name", got.Name)
	}

	bi, ok := rows[bob.ID.Hex()]
	if !ok {
		t.Fatal("bob missing from response")
	}
	got = resp.Locations[bi]
	if got.Status != string(realtime.StatusOffline) {
		t.Errorf("bob status: got %q, want offline", got.Status)
	}
	if got.Lat != 41.0 || got.Lng != -75.0 {
		t.Errorf("bob should use his stored position, got (%v, %v)", got.Lat, got.Lng)
	}
}

func TestServeList_EmptyDatabase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	locStore := locationstore.New(db)
	users := userstore.New(db)

	svc := realtime.NewService(locStore, zap.NewNop(), realtime.Options{})
	h := locations.NewHandler(svc, locStore, users, zap.NewNop())

	resp := serveList(t, h)
	if resp.Count != 0 {
		t.Errorf("count: got %d, want 0", resp.Count)
	}
	if len(resp.Locations) != 0 {
		t.Errorf("locations: got %d rows, want 0", len(resp.Locations))
	}
}

func TestServeList_UndecoratedWhenUserRowMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	locStore := locationstore.New(db)
	users := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// A location row whose user was removed from the whitelist.
	orphan := primitive.NewObjectID()
	fx := testutil.NewFixtures(t, db)
	fx.CreateLocation(ctx, orphan, 40.0, -74.0)

	svc := realtime.NewService(locStore, zap.NewNop(), realtime.Options{})
	h := locations.NewHandler(svc, locStore, users, zap.NewNop())

	resp := serveList(t, h)
	if resp.Count != 1 {
		t.Fatalf("count: got %d, want 1", resp.Count)
	}
	if resp.Locations[0].Name != "" {
		t.Errorf("orphan row should be undecorated, got name %q", resp.Locations[0].Name)
	}
	if resp.Locations[0].Status != string(realtime.StatusOffline) {
		t.Errorf("orphan status: got %q, want offline", resp.Locations[0].Status)
	}
}

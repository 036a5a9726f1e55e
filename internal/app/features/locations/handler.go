// internal/app/features/locations/handler.go
package locations

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/crewhub/internal/app/realtime"
	locationstore "github.com/dalemusser/crewhub/internal/app/store/locations"
	userstore "github.com/dalemusser/crewhub/internal/app/store/users"
	"github.com/dalemusser/crewhub/internal/app/system/timeouts"
	"github.com/dalemusser/crewhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the query side of location sharing: the live
// in-memory snapshot merged with durable storage for users who are no
// longer connected.
type Handler struct {
	Service   *realtime.Service
	Locations *locationstore.Store
	Users     *userstore.Store
	Log       *zap.Logger
}

// NewHandler creates a locations query handler.
func NewHandler(svc *realtime.Service, locStore *locationstore.Store, users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Service:   svc,
		Locations: locStore,
		Users:     users,
		Log:       logger,
	}
}

// locationRow is one user's position in the list response. Connected
// users carry their live presence status; everyone else is offline
// with their last stored position.
type locationRow struct {
	UserID    string          `json:"user_id"`
	Name      string          `json:"name,omitempty"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	Status    realtime.Status `json:"status"`
	Lat       float64         `json:"lat"`
	Lng       float64         `json:"lng"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type listResponse struct {
	Count     int           `json:"count"`
	Locations []locationRow `json:"locations"`
}

// ServeList handles GET /api/locations.
//
// Live entries come from the realtime snapshot and are stamped with
// the user's presence status; stored rows for disconnected users are
// stamped offline. Both sets are decorated with name and avatar from
// the users collection.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list locations")
	defer cancel()

	live := h.Service.LocationSnapshot()
	presence := h.Service.PresenceSnapshot()

	rows := make([]locationRow, 0, len(live))
	exclude := make([]primitive.ObjectID, 0, len(live))
	for userID, entry := range live {
		status := realtime.StatusOnline
		if st, ok := presence[userID]; ok {
			status = st
		}
		rows = append(rows, locationRow{
			UserID:    userID,
			Status:    status,
			Lat:       entry.Lat,
			Lng:       entry.Lng,
			UpdatedAt: entry.UpdatedAt,
		})
		if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
			exclude = append(exclude, oid)
		}
	}

	stored, err := h.Locations.ListExcluding(ctx, exclude)
	if err != nil {
		h.Log.Error("list stored locations failed", zap.Error(err))
		http.Error(w, "failed to load locations", http.StatusInternalServerError)
		return
	}
	for _, loc := range stored {
		rows = append(rows, locationRow{
			UserID:    loc.UserID.Hex(),
			Status:    realtime.StatusOffline,
			Lat:       loc.Latitude,
			Lng:       loc.Longitude,
			UpdatedAt: loc.UpdatedAt,
		})
	}

	h.decorate(ctx, rows)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(listResponse{Count: len(rows), Locations: rows})
}

// decorate fills in display names and avatars. Lookup failures leave
// rows undecorated rather than failing the request.
func (h *Handler) decorate(ctx context.Context, rows []locationRow) {
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		if oid, err := primitive.ObjectIDFromHex(row.UserID); err == nil {
			ids = append(ids, oid)
		}
	}
	users, err := h.Users.ListByIDs(ctx, ids)
	if err != nil {
		h.Log.Warn("user lookup for locations failed", zap.Error(err))
		return
	}

	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID.Hex()] = u
	}
	for i := range rows {
		if u, ok := byID[rows[i].UserID]; ok {
			rows[i].Name = u.FullName
			rows[i].AvatarURL = u.AvatarURL
		}
	}
}

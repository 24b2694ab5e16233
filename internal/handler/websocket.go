package handler

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/zaikon/internal/access"
	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/websocket"
)

// LocationAuthorizer lets a signed-in member watch one location given by
// the location_id query parameter.
func LocationAuthorizer(checker *access.Checker) websocket.Authorizer {
	return func(r *http.Request) (int64, int64, error) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			return 0, 0, apperr.ErrUnauthenticated
		}
		locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
		if err != nil || locationID <= 0 {
			return 0, 0, apperr.Invalid("location_id", "location_id is required")
		}
		if _, err := checker.Location(userID, locationID); err != nil {
			return 0, 0, err
		}
		return userID, locationID, nil
	}
}

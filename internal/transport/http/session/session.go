// Package session serves restaurant login and logout.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/transport/http/respond"
	"github.com/go-playground/validator/v10"
)

type service interface {
	Login(ctx context.Context, rawCode string) (session.Session, error)
	Logout(ctx context.Context) error
	Current() session.Session
}

// loginRequest is the body of POST /api/session.
type loginRequest struct {
	Code string `json:"restaurantCode" validate:"required"`
}

// Login handles a restaurant login and answers with the new session.
func Login(w http.ResponseWriter, r *http.Request, service service) {
	req := loginRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for login", "error", err)

		return
	}
	if err := validator.New().Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for login", "error", err)

		return
	}

	sess, err := service.Login(r.Context(), req.Code)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, sess)
}

// Logout handles a logout. Logging out without a session succeeds.
func Logout(w http.ResponseWriter, r *http.Request, service service) {
	if err := service.Logout(r.Context()); err != nil {
		respond.Error(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Current handles the who-am-i request.
func Current(w http.ResponseWriter, _ *http.Request, service service) {
	sess := service.Current()
	if sess.Empty() {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	respond.JSON(w, http.StatusOK, sess)
}

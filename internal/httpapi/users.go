package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/goliatone/go-catalog-api/internal/store"
	"github.com/google/uuid"
)

// userInput is the writable part of a user.
type userInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	scope, err := a.gate.Scope(r.Context(), r.PathValue("customerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := a.users.ListPage(r.Context(), scope, a.pages.FromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, page.Total, page.Items)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	scope, err := a.gate.Scope(r.Context(), r.PathValue("customerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.Get(r.Context(), scope, r.PathValue("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	scope, err := a.gate.Scope(r.Context(), r.PathValue("customerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in userInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := a.users.Create(r.Context(), scope, &store.User{
		ID:        uuid.New(),
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", userLocation(r, created))
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	scope, err := a.gate.Scope(r.Context(), r.PathValue("customerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in userInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	existing, err := a.users.Get(r.Context(), scope, r.PathValue("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	existing.Username = in.Username
	existing.Email = in.Email
	existing.Password = in.Password

	updated, err := a.users.Update(r.Context(), scope, existing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	scope, err := a.gate.Scope(r.Context(), r.PathValue("customerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.users.Delete(r.Context(), scope, r.PathValue("userId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// userLocation is the absolute URL of the user detail route.
func userLocation(r *http.Request, u *store.User) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	loc := url.URL{
		Scheme: scheme,
		Host:   r.Host,
		Path:   "/users/" + u.CustomerID.String() + "/" + u.ID.String(),
	}
	return loc.String()
}

package httpapi

import (
	"net/http"
	"strings"

	"rentchain.org/internal/auth"
	"rentchain.org/internal/market"
)

type registerRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  market.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	user, err := a.svc.RegisterUser(r.Context(), market.RegisterParams{
		Role:     market.Role(req.Role),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.audit(r.Context(), "user.register", map[string]any{
		"userId": user.ID,
		"role":   string(user.Role),
	})

	resp := sessionResponse{User: user}
	if auth.Enabled() {
		token, err := auth.GenerateToken(user.ID, string(user.Role), a.tokenTTL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Token = token
	}
	w.Header().Set("Location", "/v1/users/"+itoa(user.ID))
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	user, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.audit(r.Context(), "user.login", map[string]any{"userId": user.ID})

	resp := sessionResponse{User: user}
	if auth.Enabled() {
		token, err := auth.GenerateToken(user.ID, string(user.Role), a.tokenTTL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Token = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	id, ok := parseID(rest)
	if !ok {
		notFoundRoute(w, r)
		return
	}
	user, err := a.svc.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/watif-social/recommender/internal/auth"
	"github.com/watif-social/recommender/internal/config"
	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/recommend"
	"github.com/watif-social/recommender/internal/social"
	"github.com/watif-social/recommender/internal/validation"
)

// Handler serves the recommendation API.
type Handler struct {
	engines  recommend.Registry
	ranker   *recommend.Ranker
	docs     *docstore.Entities
	verifier *auth.Verifier
	tokens   *auth.Manager
	mode     string
}

// NewHandler wires the API handlers. tokens may be nil when auth is
// disabled; the /token route then answers 401.
func NewHandler(engines recommend.Registry, ranker *recommend.Ranker, docs *docstore.Entities,
	verifier *auth.Verifier, tokens *auth.Manager, mode string) *Handler {
	return &Handler{
		engines:  engines,
		ranker:   ranker,
		docs:     docs,
		verifier: verifier,
		tokens:   tokens,
		mode:     strings.ToLower(mode),
	}
}

// reservedParams are query parameters with a meaning of their own; anything
// else in the query string is treated as a weight override.
var reservedParams = map[string]bool{
	"user_id": true,
	"limit":   true,
	"skip":    true,
	"seed":    true,
}

// Recommend handles GET /recommend/{engine}/{kind}.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "engine"))
	engine, ok := h.engines.Get(code)
	if !ok {
		WriteFault(w, r, fault.Errorf(fault.InvalidParam, "unknown engine %q", chi.URLParam(r, "engine")))
		return
	}
	kind, err := recommend.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}

	params, userID, err := parseRecommendQuery(r)
	if err != nil {
		WriteFault(w, r, err)
		return
	}

	ids, err := h.ranker.Recommend(r.Context(), engine, kind, userID, params)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	if ids == nil {
		ids = []social.ID{}
	}

	WriteJSON(w, http.StatusOK, map[string][]social.ID{"recommended_" + string(kind): ids})
}

// parseRecommendQuery extracts the user id, limit/skip/seed and any weight
// overrides from the query string. Unknown weight names are passed through;
// the ranker rejects them before any store access.
func parseRecommendQuery(r *http.Request) (recommend.Params, social.ID, error) {
	query := r.URL.Query()
	var p recommend.Params

	userID := social.ID(query.Get("user_id"))
	if userID == "" {
		return p, "", fault.New(fault.InvalidParam, "user_id is required")
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return p, "", fault.Errorf(fault.InvalidParam, "limit %q is not an integer", raw)
		}
		p.Limit = limit
	}
	if raw := query.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			return p, "", fault.Errorf(fault.InvalidParam, "skip %q is not an integer", raw)
		}
		p.Skip = skip
	}
	if raw := query.Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return p, "", fault.Errorf(fault.InvalidParam, "seed %q is not an integer", raw)
		}
		p.Seed = &seed
	}

	for name, values := range query {
		if reservedParams[name] || len(values) == 0 {
			continue
		}
		weight, err := strconv.ParseFloat(values[0], 64)
		if err != nil {
			return p, "", fault.Errorf(fault.InvalidParam, "weight %q is not a number", name)
		}
		if p.Weights == nil {
			p.Weights = make(map[string]float64)
		}
		p.Weights[name] = weight
	}

	return p, userID, nil
}

// Health handles GET /health. It reports the server mode, with normal
// deploy operation shown as "healthy".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.mode
	if status == config.ModeDeploy || status == "" {
		status = "healthy"
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// tokenResponse is the OAuth2-password-grant style body of POST /token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// credentialsForm is the POST /token form body.
type credentialsForm struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=256"`
}

// Token handles POST /token: form-encoded username and password exchanged
// for a signed JWT.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		WriteFault(w, r, fault.New(fault.Unauthorized, "token issuance is disabled"))
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteFault(w, r, fault.Wrap(fault.InvalidParam, "malformed form body", err))
		return
	}
	form := credentialsForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if err := validation.Struct(&form); err != nil {
		WriteFault(w, r, err)
		return
	}

	user, err := h.verifier.Verify(r.Context(), form.Username, form.Password, auth.ClientIP(r))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	token, err := h.tokens.GenerateToken(user.Username, user.Role)
	if err != nil {
		WriteFault(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me handles GET /me: the authenticated user's document. The password hash
// never serializes (json:"-" on the model).
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		WriteFault(w, r, fault.New(fault.Unauthorized, "not authenticated"))
		return
	}

	user, err := h.docs.UserByUsername(r.Context(), principal.Username)
	if err != nil {
		if fault.KindOf(err) == fault.NotFound {
			WriteError(w, http.StatusNotFound, fault.NotFound.String(), "user not found")
			return
		}
		WriteFault(w, r, err)
		return
	}

	logging.CtxDebug(r.Context()).Str("username", logging.SanitizeUsername(user.Username)).Msg("Profile fetched")
	WriteJSON(w, http.StatusOK, user)
}

package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"edulearn-backend/internal/middleware"
)

// newRequest builds a request as the router would hand it over: with the
// authenticated user and the {id} route parameter set.
func newRequest(method, target string, body io.Reader, userID uuid.UUID, id string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rctx := chi.NewRouteContext()
	if id != "" {
		rctx.URLParams.Add("id", id)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

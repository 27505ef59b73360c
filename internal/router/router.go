package router

import (
	"net/http"

	"github.com/gstdocai/backend/internal/auth"
	"github.com/gstdocai/backend/internal/dashboard"
	"github.com/gstdocai/backend/internal/handlers"
	"github.com/gstdocai/backend/internal/middleware"
	"github.com/gstdocai/backend/internal/observability"
	"github.com/gstdocai/backend/internal/payments"
)

// Deps carries the handlers the API is assembled from.
type Deps struct {
	Auth      *auth.Handler
	Dashboard *dashboard.Handler
	Letters   *handlers.LetterHandler
	Payments  *payments.Handler
	Tokens    middleware.TokenValidator
	Metrics   *observability.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// New returns an http.Handler that serves the API under /api/v1.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"
	requireAccount := middleware.RequireAccount(d.Tokens)
	private := func(h http.HandlerFunc) http.Handler {
		return requireAccount(h)
	}

	// Public
	mux.HandleFunc("POST "+base+"/auth/register", d.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", d.Auth.Login)
	mux.HandleFunc("GET "+base+"/plans", dashboard.ListPlans)
	mux.HandleFunc("GET /healthz", healthz)
	if d.MetricsHandler != nil {
		mux.Handle("GET /metrics", d.MetricsHandler)
	}

	// Session required
	mux.Handle("GET "+base+"/account/me", private(d.Dashboard.GetMe))
	mux.Handle("POST "+base+"/letters/generate", private(d.Letters.Generate))
	mux.Handle("GET "+base+"/letters", private(d.Letters.ListLetters))
	mux.Handle("GET "+base+"/letters/{id}", private(d.Letters.GetLetter))
	mux.Handle("POST "+base+"/payments/orders", private(d.Payments.CreateOrder))
	mux.Handle("POST "+base+"/payments/verify", private(d.Payments.Verify))

	if d.Metrics == nil {
		return mux
	}
	return observability.HTTPMiddleware(d.Metrics)(mux)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

package main

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/diewo77/go-chantiers/i18n"
	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/policy"
	"github.com/diewo77/go-chantiers/internal/storage"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/view"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
	log       *slog.Logger
	handler   http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *policy.RouterConfig, log *slog.Logger) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
		log:       log,
	}
	// Templates show or hide actions from the role permissions only.
	view.SetCanResolver(func(r *http.Request, resource, action string) bool {
		return routerCfg.AuthGate.CanProfile(r.Context(), access.Action(action), resource)
	})
	view.SetLangResolver(langFor)
	app.setupRoutes()

	// Global middleware: request log, credentials, tenant scope, language
	app.handler = app.withLogging(
		routerCfg.Sessions.Middleware(
			tenancy.Middleware(routerCfg.Scopes, log)(
				withPreferences(app.mux))))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// handle registers h behind the metrics middleware, which needs the
// matched pattern.
func (a *App) handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, a.routerCfg.Metrics.Middleware(h))
}

func (a *App) handleFunc(pattern string, f http.HandlerFunc) {
	a.handle(pattern, f)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	rc := a.routerCfg

	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	ah := rc.AuthHandler
	a.handleFunc("GET /login", ah.LoginPage)
	a.handleFunc("POST /login", ah.Login)
	a.handleFunc("POST /logout", ah.Logout)
	a.handleFunc("POST /api/auth/signup", ah.Signup)
	a.handleFunc("POST /api/auth/login", ah.APILogin)
	a.handleFunc("POST /api/auth/token", ah.Token)
	a.handleFunc("POST /api/auth/logout", ah.Logout)

	a.handleFunc("GET /health", rc.HealthHandler.Live)
	a.handleFunc("GET /healthz", rc.HealthHandler.Ready)
	a.handle("GET /metrics", rc.Metrics.Handler())

	a.handleFunc("POST /api/stripe/webhook", rc.BillingHandler.Webhook)
	a.handleFunc("GET "+storage.DownloadPath, rc.PhotoHandler.Download)

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes (require logged-in user)
	// ─────────────────────────────────────────────────────────────────────────
	ph := rc.PageHandler
	ch := rc.CompanyHandler
	a.handleFunc("GET /{$}", ph.Home)
	a.handle("GET /api/auth/me", a.requireAuth(http.HandlerFunc(ah.Me)))
	a.handle("GET /entreprise/nouvelle", a.requireAuth(http.HandlerFunc(ch.NewPage)))
	a.handle("POST /entreprise/nouvelle", a.requireAuth(http.HandlerFunc(ch.CreateForm)))
	a.handle("POST /entreprise/rejoindre", a.requireAuth(http.HandlerFunc(ch.JoinForm)))
	a.handle("POST /api/entreprises", a.requireAuth(http.HandlerFunc(ch.Create)))
	a.handle("POST /api/entreprises/join", a.requireAuth(http.HandlerFunc(ch.Join)))
	a.handle("GET /abonnement/merci", a.requireAuth(http.HandlerFunc(ph.Thanks)))

	// ─────────────────────────────────────────────────────────────────────────
	// Tenant routes (require auth, a company and a permission)
	// ─────────────────────────────────────────────────────────────────────────
	a.handle("GET /abonnement/expire", a.tenant(http.HandlerFunc(ph.Expired)))
	a.handle("GET /api/me/entreprise", a.tenant(http.HandlerFunc(ch.Me)))
	a.handle("PUT /api/me/entreprise", a.protect(access.ResourceCompany, access.ActionUpdate, false, ch.Update))
	a.handle("GET /api/dashboard", a.tenant(http.HandlerFunc(rc.DashboardHandler.Summary)))
	a.handle("POST /api/stripe/checkout", a.protect(access.ResourceBilling, access.ActionCheckout, false, rc.BillingHandler.Checkout))

	// Clients
	cl := rc.ClientHandler
	a.handle("GET /api/clients", a.protect(access.ResourceClient, access.ActionList, false, cl.List))
	a.handle("POST /api/clients", a.protect(access.ResourceClient, access.ActionCreate, false, cl.Create))
	a.handle("GET /api/clients/{id}", a.protect(access.ResourceClient, access.ActionView, false, cl.Get))
	a.handle("PUT /api/clients/{id}", a.protect(access.ResourceClient, access.ActionUpdate, false, cl.Update))
	a.handle("DELETE /api/clients/{id}", a.protect(access.ResourceClient, access.ActionDelete, false, cl.Delete))

	// Chantiers with notes, checklist and photos
	ct := rc.ChantierHandler
	pt := rc.PhotoHandler
	a.handle("GET /api/chantiers", a.protect(access.ResourceChantier, access.ActionList, false, ct.List))
	a.handle("POST /api/chantiers", a.protect(access.ResourceChantier, access.ActionCreate, false, ct.Create))
	a.handle("GET /api/chantiers/{id}", a.protect(access.ResourceChantier, access.ActionView, false, ct.Get))
	a.handle("PUT /api/chantiers/{id}", a.protect(access.ResourceChantier, access.ActionUpdate, false, ct.Update))
	a.handle("DELETE /api/chantiers/{id}", a.protect(access.ResourceChantier, access.ActionDelete, false, ct.Delete))
	a.handle("POST /api/chantiers/{id}/notes", a.protect(access.ResourceChantier, access.ActionUpdate, true, ct.AddNote))
	a.handle("DELETE /api/chantiers/{id}/notes/{note}", a.protect(access.ResourceChantier, access.ActionUpdate, false, ct.DeleteNote))
	a.handle("POST /api/chantiers/{id}/checklist", a.protect(access.ResourceChantier, access.ActionUpdate, false, ct.AddChecklistItem))
	a.handle("POST /api/chantiers/{id}/checklist/{item}/toggle", a.protect(access.ResourceChantier, access.ActionUpdate, true, ct.ToggleChecklistItem))
	a.handle("DELETE /api/chantiers/{id}/checklist/{item}", a.protect(access.ResourceChantier, access.ActionUpdate, false, ct.DeleteChecklistItem))
	a.handle("GET /api/chantiers/{id}/photos", a.protect(access.ResourceChantier, access.ActionView, false, pt.List))
	a.handle("POST /api/chantiers/{id}/photos", a.protect(access.ResourceChantier, access.ActionUpdate, true, pt.Upload))
	a.handle("DELETE /api/chantiers/{id}/photos/{photo}", a.protect(access.ResourceChantier, access.ActionUpdate, false, pt.Delete))

	// Quotes
	qh := rc.QuoteHandler
	a.handle("GET /api/quotes", a.protect(access.ResourceQuote, access.ActionList, false, qh.List))
	a.handle("POST /api/quotes", a.protect(access.ResourceQuote, access.ActionCreate, true, qh.Create))
	a.handle("GET /api/quotes/{id}", a.protect(access.ResourceQuote, access.ActionView, false, qh.Get))
	a.handle("PUT /api/quotes/{id}", a.protect(access.ResourceQuote, access.ActionUpdate, false, qh.Update))
	a.handle("DELETE /api/quotes/{id}", a.protect(access.ResourceQuote, access.ActionDelete, false, qh.Delete))
	a.handle("POST /api/quotes/{id}/lines", a.protect(access.ResourceQuote, access.ActionUpdate, false, qh.EditLines))
	a.handle("GET /api/quotes/{id}/history", a.protect(access.ResourceQuote, access.ActionView, false, qh.History))
	a.handle("POST /api/quotes/{id}/status", a.protect(access.ResourceQuote, access.ActionTransition, false, qh.Transition))
	a.handle("POST /api/quotes/{id}/invoice", a.protect(access.ResourceQuote, access.ActionConvert, true, qh.Convert))
	a.handle("GET /quotes/{id}/print", a.protect(access.ResourceQuote, access.ActionView, true, qh.Print))

	// Invoices
	ih := rc.InvoiceHandler
	a.handle("GET /api/invoices", a.protect(access.ResourceInvoice, access.ActionList, false, ih.List))
	a.handle("POST /api/invoices", a.protect(access.ResourceInvoice, access.ActionCreate, true, ih.Create))
	a.handle("GET /api/invoices/{id}", a.protect(access.ResourceInvoice, access.ActionView, false, ih.Get))
	a.handle("PUT /api/invoices/{id}", a.protect(access.ResourceInvoice, access.ActionUpdate, false, ih.Update))
	a.handle("DELETE /api/invoices/{id}", a.protect(access.ResourceInvoice, access.ActionDelete, false, ih.Delete))
	a.handle("POST /api/invoices/{id}/lines", a.protect(access.ResourceInvoice, access.ActionUpdate, false, ih.EditLines))
	a.handle("GET /api/invoices/{id}/history", a.protect(access.ResourceInvoice, access.ActionView, false, ih.History))
	a.handle("POST /api/invoices/{id}/status", a.protect(access.ResourceInvoice, access.ActionTransition, false, ih.Transition))
	a.handle("POST /api/invoices/{id}/send", a.protect(access.ResourceInvoice, access.ActionTransition, false, ih.Send))
	a.handle("POST /api/invoices/{id}/pay", a.protect(access.ResourceInvoice, access.ActionTransition, false, ih.Pay))
	a.handle("GET /invoices/{id}/print", a.protect(access.ResourceInvoice, access.ActionView, true, ih.Print))

	// Agenda
	ag := rc.AgendaHandler
	a.handle("GET /api/agenda", a.protect(access.ResourceEvent, access.ActionList, false, ag.List))
	a.handle("GET /api/agenda/buckets", a.protect(access.ResourceEvent, access.ActionList, false, ag.Buckets))
	a.handle("POST /api/agenda", a.protect(access.ResourceEvent, access.ActionCreate, true, ag.Create))
	a.handle("GET /api/agenda/{id}", a.protect(access.ResourceEvent, access.ActionView, false, ag.Get))
	a.handle("PUT /api/agenda/{id}", a.protect(access.ResourceEvent, access.ActionUpdate, false, ag.Update))
	a.handle("DELETE /api/agenda/{id}", a.protect(access.ResourceEvent, access.ActionDelete, false, ag.Delete))

	// ─────────────────────────────────────────────────────────────────────────
	// Operator routes
	// ─────────────────────────────────────────────────────────────────────────
	a.handle("POST /api/admin/delete", a.requireAuth(rc.AuthGate.RequireOperator()(http.HandlerFunc(rc.AdminHandler.Delete))))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// requireAuth answers 401 (or redirects to /login) without a live user.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return a.routerCfg.Sessions.RequireAuth(next)
}

// tenant additionally requires a company.
func (a *App) tenant(next http.Handler) http.Handler {
	return a.requireAuth(tenancy.RequireTenant(next))
}

// protect chains auth, tenant, the resource permission and, for gated
// routes, the subscription check.
func (a *App) protect(resourceType string, action access.Action, gated bool, h http.HandlerFunc) http.Handler {
	var next http.Handler = h
	if gated {
		next = a.routerCfg.Subscription.RequireActive(next)
	}
	return a.tenant(a.routerCfg.AuthGate.RequirePermission(resourceType, action)(next))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// withLogging adds request logging middleware.
func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		a.log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("duration", time.Since(start)))
	})
}

const langCookie = "lang"

// withPreferences stores a ?lang= choice in a cookie.
func withPreferences(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("lang"); q != "" && slices.Contains(i18n.Languages(), q) {
			http.SetCookie(w, &http.Cookie{
				Name:     langCookie,
				Value:    q,
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r)
	})
}

// langFor picks ?lang=, then the cookie, then Accept-Language.
func langFor(r *http.Request) string {
	supported := i18n.Languages()
	if r.URL != nil {
		if q := r.URL.Query().Get("lang"); slices.Contains(supported, q) {
			return q
		}
	}
	if c, err := r.Cookie(langCookie); err == nil && slices.Contains(supported, c.Value) {
		return c.Value
	}
	return i18n.DetectLanguage(r.Header.Get("Accept-Language"))
}

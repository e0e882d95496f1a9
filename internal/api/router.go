package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voltgrid/server/internal/api/handlers"
	"github.com/voltgrid/server/internal/api/middleware"
	"github.com/voltgrid/server/internal/app"
	"github.com/voltgrid/server/internal/auth"
	"github.com/voltgrid/server/internal/config"
	"github.com/voltgrid/server/internal/metrics"
)

// NewRouter assembles the HTTP surface over an already-wired app graph.
func NewRouter(cfg config.Config, logger zerolog.Logger, application *app.App, version, gitCommit string) http.Handler {
	env := cfg.Environment

	authHandler := &handlers.AuthHandler{Service: application.Users, Env: env}
	stationsHandler := &handlers.StationsHandler{Service: application.Stations, Env: env}
	changesHandler := &handlers.ChangesHandler{
		Service:       application.Changes,
		Audit:         application.Audit,
		HighThreshold: cfg.Workflow.HighRiskThreshold,
		Env:           env,
	}
	verificationHandler := &handlers.VerificationHandler{
		Service: application.Verification,
		Ranker:  application.Ranker,
		Audit:   application.Audit,
		Env:     env,
	}
	issuesHandler := &handlers.IssuesHandler{Service: application.Issues, Env: env}
	collaboratorsHandler := &handlers.CollaboratorsHandler{Service: application.Collaborators, Env: env}
	trustHandler := &handlers.TrustHandler{Engine: application.Trust, Env: env}
	auditHandler := &handlers.AuditHandler{Reader: application.AuditReader, Env: env}
	health := handlers.NewHealthChecker(application.Pool, version, gitCommit)

	authed := middleware.Authenticate(application.JWT, env)
	admin := func(h http.Handler) http.Handler {
		return authed(middleware.RequireRole(env, auth.RoleAdmin)(h))
	}
	adminOrProvider := func(h http.Handler) http.Handler {
		return authed(middleware.RequireRole(env, auth.RoleAdmin, auth.RoleProvider)(h))
	}
	collaborator := func(h http.Handler) http.Handler {
		return authed(middleware.RequireRole(env, auth.RoleCollaborator)(h))
	}

	mux := http.NewServeMux()

	mux.Handle("/healthz", health.Live())
	mux.Handle("/readyz", health.Health())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/auth/register", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Register),
	}))
	mux.Handle("/api/v1/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Login),
	}))
	mux.Handle("/api/v1/auth/me", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(authHandler.Me)),
	}))

	mux.Handle("/api/v1/stations", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(stationsHandler.List),
	}))
	mux.Handle("/api/v1/stations/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(stationsHandler.Get),
	}))
	mux.Handle("/api/v1/stations/{id}/versions", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(stationsHandler.Versions)),
	}))
	mux.Handle("/api/v1/stations/{id}/trust", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(trustHandler.Get),
	}))
	mux.Handle("/api/v1/stations/{id}/trust/recompute", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(trustHandler.Recompute)),
	}))
	mux.Handle("/api/v1/stations/{id}/issues", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(issuesHandler.List)),
	}))

	mux.Handle("/api/v1/change-requests", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(http.HandlerFunc(changesHandler.List)),
		http.MethodPost: adminOrProvider(http.HandlerFunc(changesHandler.Submit)),
	}))
	mux.Handle("/api/v1/change-requests/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(changesHandler.Get)),
	}))
	mux.Handle("/api/v1/change-requests/{id}/approve", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(changesHandler.Approve)),
	}))
	mux.Handle("/api/v1/change-requests/{id}/reject", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(changesHandler.Reject)),
	}))

	mux.Handle("/api/v1/verification-tasks", methodMux(map[string]http.Handler{
		http.MethodGet:  authed(http.HandlerFunc(verificationHandler.List)),
		http.MethodPost: admin(http.HandlerFunc(verificationHandler.Create)),
	}))
	mux.Handle("/api/v1/verification-tasks/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(verificationHandler.Get)),
	}))
	mux.Handle("/api/v1/verification-tasks/{id}/candidates", methodMux(map[string]http.Handler{
		http.MethodGet: admin(http.HandlerFunc(verificationHandler.Candidates)),
	}))
	mux.Handle("/api/v1/verification-tasks/{id}/assign", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(verificationHandler.Assign)),
	}))
	mux.Handle("/api/v1/verification-tasks/{id}/checkin", methodMux(map[string]http.Handler{
		http.MethodPost: collaborator(http.HandlerFunc(verificationHandler.CheckIn)),
	}))
	mux.Handle("/api/v1/verification-tasks/{id}/evidence", methodMux(map[string]http.Handler{
		http.MethodPost: collaborator(http.HandlerFunc(verificationHandler.SubmitEvidence)),
	}))
	mux.Handle("/api/v1/verification-tasks/{id}/review", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(verificationHandler.Review)),
	}))

	mux.Handle("/api/v1/issues", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(http.HandlerFunc(issuesHandler.List)),
		http.MethodPost: authed(http.HandlerFunc(issuesHandler.Report)),
	}))
	mux.Handle("/api/v1/issues/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(issuesHandler.Get)),
	}))
	mux.Handle("/api/v1/issues/{id}/acknowledge", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(issuesHandler.Acknowledge)),
	}))
	mux.Handle("/api/v1/issues/{id}/resolve", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(issuesHandler.Resolve)),
	}))
	mux.Handle("/api/v1/issues/{id}/reject", methodMux(map[string]http.Handler{
		http.MethodPost: admin(http.HandlerFunc(issuesHandler.Reject)),
	}))

	mux.Handle("/api/v1/audit", methodMux(map[string]http.Handler{
		http.MethodGet: admin(http.HandlerFunc(auditHandler.List)),
	}))

	mux.Handle("/api/v1/collaborators/profile", methodMux(map[string]http.Handler{
		http.MethodPost: collaborator(http.HandlerFunc(collaboratorsHandler.CreateProfile)),
	}))
	mux.Handle("/api/v1/collaborators/location", methodMux(map[string]http.Handler{
		http.MethodPost: collaborator(http.HandlerFunc(collaboratorsHandler.ReportLocation)),
	}))
	mux.Handle("/api/v1/collaborators/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: admin(http.HandlerFunc(collaboratorsHandler.GetProfile)),
	}))
	mux.Handle("/api/v1/collaborators/{id}/kpi", methodMux(map[string]http.Handler{
		http.MethodGet: admin(http.HandlerFunc(verificationHandler.CollaboratorKPI)),
	}))
	mux.Handle("/api/v1/collaborators/{id}/contracts", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(http.HandlerFunc(collaboratorsHandler.ListContracts)),
		http.MethodPost: admin(http.HandlerFunc(collaboratorsHandler.CreateContract)),
	}))
	mux.Handle("/api/v1/collaborators/{id}/contracts/{contractId}/status", methodMux(map[string]http.Handler{
		http.MethodPut: admin(http.HandlerFunc(collaboratorsHandler.SetContractStatus)),
	}))

	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

package routes

import (
	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/handlers"
	"github.com/colefleming/vouch/internal/middleware"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	approvalHandler *handlers.ApprovalHandler,
	inviteHandler *handlers.InviteHandler,
	auditHandler *handlers.AuditHandler,
	resolver auth.SessionResolver,
	ipConfig *pkghttp.IPConfig,
) {
	authLimit := middleware.DefaultAuthRateLimit()
	sessionLimit := middleware.DefaultAuthenticatedRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/register", authHandler.Register)

	// Status polling is public: the waiting device may hold only a half
	// session, and the endpoint reveals nothing but the request state
	router.With(middleware.RateLimitByIP(authLimit)).Get("/auth/requests/{id}", approvalHandler.Status)

	// Protected routes - full session required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(resolver, ipConfig))
		r.Use(middleware.RateLimitByUser(sessionLimit))

		// Logout works from a half session too: a waiting device may
		// abandon its request
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireFull)

			r.Get("/auth/requests/pending", approvalHandler.ListPending)
			r.Post("/auth/requests/{id}/approve", approvalHandler.Approve)
			r.Post("/auth/requests/{id}/reject", approvalHandler.Reject)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/invites", inviteHandler.Create)
				r.Get("/admin/audit/requests/{id}", auditHandler.RequestTrail)
				r.Get("/admin/audit/actors/{id}", auditHandler.ActorTrail)
				r.Get("/admin/audit/security/{id}", auditHandler.SecurityTrail)
			})
		})
	})
}

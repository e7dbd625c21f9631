package routes

import (
	"github.com/julienschmidt/httprouter"

	"laborease/auth"
	"laborease/dashboard"
	"laborease/jobs"
	"laborease/live"
	"laborease/middleware"
	"laborease/ratelim"
)

// AddJobRoutes wires the lifecycle handlers to the router.
func AddJobRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *jobs.Handler) {
	authed := middleware.Chain(rl.Limit, middleware.Authenticate)
	public := middleware.Chain(rl.Limit, middleware.OptionalAuth)

	router.GET("/api/jobs", public(h.ListOpenJobs))
	router.GET("/api/jobs/:id", public(h.GetJob))

	router.POST("/api/jobs",
		middleware.Chain(rl.Limit, middleware.Authenticate, middleware.RequireRole(auth.RoleClient))(h.CreateJob))
	router.POST("/api/jobs/:id/apply",
		middleware.Chain(rl.Limit, middleware.Authenticate, middleware.RequireRole(auth.RoleLaborer))(h.Apply))
	router.POST("/api/jobs/:id/cancel", authed(h.Cancel))

	router.POST("/api/applications/:id/accept", authed(h.Accept))
	router.POST("/api/applications/:id/decline", authed(h.Decline))

	router.POST("/api/assignments/:id/complete", authed(h.Complete))
	router.POST("/api/assignments/:id/payment", authed(h.Pay))
	router.POST("/api/assignments/:id/rating", authed(h.Rate))
}

// AddDashboardRoutes wires the role-scoped read views.
func AddDashboardRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *dashboard.Handler) {
	router.GET("/api/dashboard/client",
		middleware.Chain(rl.Limit, middleware.Authenticate, middleware.RequireRole(auth.RoleClient))(h.Client))
	router.GET("/api/dashboard/laborer",
		middleware.Chain(rl.Limit, middleware.Authenticate, middleware.RequireRole(auth.RoleLaborer))(h.Laborer))
}

// AddLiveRoutes wires the websocket change-feed bridge.
func AddLiveRoutes(router *httprouter.Router, f *live.Fanout) {
	router.GET("/ws/updates/:table", f.HandleWS)
}

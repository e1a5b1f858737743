package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex     = "/"
	RouteLoginPage = "/login"

	// Auth Routes
	RouteAuthLogin    = "/auth/login"
	RouteAuthCallback = "/auth/callback"
	RouteAuthMe       = "/auth/me"
	RouteAuthLogout   = "/auth/logout"
)

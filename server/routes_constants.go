package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex  = "/"
	RouteStatus = "/status"

	// Auth Routes
	RouteLogin        = "/login"
	RouteLogout       = "/logout"
	RouteOidcCallback = "/oidc/callback"

	// Secret Routes
	RouteSecrets = "/secrets"
	RouteSecret  = "/secrets/{id}"

	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)

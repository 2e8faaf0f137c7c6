package app

// registerRoutes sets up all HTTP handlers for the application.
func (a *App) registerRoutes() {
	a.mux.HandleFunc("POST /api/ingest", a.handleIngest)
	a.mux.HandleFunc("GET /api/latest", a.handleLatest)
	a.mux.HandleFunc("GET /api/history", a.protect(a.handleHistory))
	a.mux.HandleFunc("GET /api/export", a.protect(a.handleExport))
	a.mux.HandleFunc("GET /api/forecast", a.protect(a.handleForecast))

	a.mux.HandleFunc("POST /api/auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("GET /api/auth/session", a.requireAuth(a.handleSession))

	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.Handle("GET /ws", a.hub)
	if a.metrics != nil {
		a.mux.Handle("GET /metrics", a.metrics.Handler())
	}
}

package sandbox

const (
	RouteBrowser          = "/{id}/browser"
	RouteListen           = "/{id}/listen"
	RouteDSMethod         = "/dsmethod"
	RouteDSMethodCallback = "/dsmethod/callback"
	RouteACS              = "/acs"
)

func (s *Server) initRoutes() {
	// Authentication Service
	s.RegisterRouteHandler("PATCH "+RouteBrowser, ChainMiddleware(s.BrowserHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteListen, ChainMiddleware(s.ListenHandler(), s.APIMiddleware()...))

	// Directory Server and ACS
	s.RegisterRouteHandler("POST "+RouteDSMethod, ChainMiddleware(s.DSMethodHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteDSMethodCallback, ChainMiddleware(s.DSMethodCallbackHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteACS, ChainMiddleware(s.ACSHandler(), s.HTMLMiddleware()...))
}

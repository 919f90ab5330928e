package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// NewServer creates the hub server listening on addr.
func NewServer(addr string, verbose bool) *rweb.Server {
	return NewTestServer(rweb.ServerOptions{
		Address: addr,
		Verbose: verbose,
	})
}

// NewTestServer builds the hub with caller-supplied options, so tests can
// bind a dynamic port and wait on ReadyChan.
func NewTestServer(opts rweb.ServerOptions) *rweb.Server {
	s := rweb.NewServer(opts)

	s.Use(rweb.RequestInfo)
	s.Use(CorsMiddleware)
	s.Use(LoggingMiddleware)
	s.Use(JWTAuthMiddleware)

	setupRoutes(s)
	return s
}

// Run starts the server
func Run(s *rweb.Server, addr string) error {
	logger.Info("notesync hub starting", "address", addr)
	return s.Run()
}

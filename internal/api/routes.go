package api

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers middleware and all routes.
//
// Middleware order: Recoverer, RequestID, RequestLogger, then Auth on /v1
// only so that /health stays open to process supervisors.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.logger))

	s.router.Get("/health", s.HandleHealth)
	s.router.Route("/v1", s.mountV1)
}

func (s *Server) mountV1(r chi.Router) {
	r.Use(s.AuthMiddleware)

	r.Route("/inapp", func(r chi.Router) {
		r.Get("/messages", s.handleListInApp)
		r.Post("/messages/{messageID}/show", s.handleShowInApp)
		r.Delete("/messages/{messageID}", s.handleRemoveInApp)
		r.Post("/evaluate", s.handleEvaluate)
		r.Put("/auto-display", s.handleAutoDisplay)
	})

	r.Route("/inbox", func(r chi.Router) {
		r.Get("/messages", s.handleListInbox)
		r.Get("/unread-count", s.handleUnreadCount)
		r.Post("/messages/{messageID}/show", s.handleShowInbox)
		r.Put("/messages/{messageID}/read", s.handleSetRead)
		r.Delete("/messages/{messageID}", s.handleRemoveInbox)
	})

	r.Route("/displays", func(r chi.Router) {
		r.Get("/", s.handlePendingDisplays)
		r.Post("/{displayID}/action", s.handleDisplayAction)
		r.Post("/{displayID}/dismiss", s.handleDisplayDismiss)
	})

	if s.Syncer != nil {
		r.Post("/sync", s.handleSync)
	}
	if s.Decoder != nil && s.Store != nil {
		r.Post("/messages", s.handleIngest)
	}
}

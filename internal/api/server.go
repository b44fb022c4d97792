// Package api is the local HTTP surface of the agent. It exposes the in-app
// and inbox operations to a UI process and hosts the DisplayBridge through
// which that process draws messages and reports interactions.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inappkit/internal/messaging"
	"inappkit/internal/types"
)

// Refresher reloads the message lists from their sources.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// PayloadDecoder validates a raw message payload.
type PayloadDecoder interface {
	Decode(data []byte) (types.InAppMessage, error)
}

// PayloadStore persists a raw payload for the next refresh.
type PayloadStore interface {
	Store(ctx context.Context, messageID string, payload []byte, priority float64, createdAt time.Time) error
}

// Server holds the handlers' dependencies. InApp, Inbox and Bridge are
// required; the rest enable optional routes.
type Server struct {
	InApp  *messaging.InAppManager
	Inbox  *messaging.InboxManager
	Bridge *DisplayBridge

	// Syncer enables POST /v1/sync.
	Syncer Refresher
	// Decoder and Store together enable POST /v1/messages.
	Decoder PayloadDecoder
	Store   PayloadStore

	HealthProbes []HealthProbe

	// Actions classifies clicked links reported by the UI.
	Actions *types.ActionURLParser

	logger *slog.Logger
	token  types.SecretString
	router *chi.Mux
}

// NewServer creates a Server. An empty token disables authentication.
func NewServer(inApp *messaging.InAppManager, inbox *messaging.InboxManager, bridge *DisplayBridge, token types.SecretString, logger *slog.Logger) (*Server, error) {
	if inApp == nil || inbox == nil {
		return nil, errors.New("api: in-app and inbox managers must not be nil")
	}
	if bridge == nil {
		return nil, errors.New("api: display bridge must not be nil")
	}
	if logger == nil {
		return nil, errors.New("api: logger must not be nil")
	}
	return &Server{
		InApp:  inApp,
		Inbox:  inbox,
		Bridge:  bridge,
		Actions: types.NewActionURLParser(),
		logger:  logger,
		token:  token,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router. Call MountRoutes first.
func (s *Server) Handler() http.Handler {
	return s.router
}

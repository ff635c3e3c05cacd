package server

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackfx/internal/services"
	"github.com/desertthunder/trackfx/internal/shared"
)

// Dependencies are the collaborators of the API routes.
type Dependencies struct {
	Config    *shared.Config
	Exchanger CodeExchanger
	Tokens    services.TokenStore
	Sessions  SessionRunner
	Resolver  FeatureResolver
	Logger    *log.Logger
}

// NewRouter registers every API route behind the logging middleware.
func NewRouter(d Dependencies) *BasicRouter {
	if d.Config == nil {
		d.Config = shared.DefaultConfig()
	}

	r := NewBasicRouter()
	r.Use(Logging(d.Logger))
	r.Handler(NewAuthHandler(d.Config, d.Exchanger, d.Tokens, d.Logger))
	r.Handler(NewSpotifyHandler(d.Sessions))
	r.Handler(NewFeaturesHandler(d.Resolver))
	return r
}

package server

import (
	"context"
	"net/http"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/services"
)

// FeatureResolver runs the cached resolution chain. Implemented by [tasks.Resolver].
type FeatureResolver interface {
	ResolveSessionTrack(ctx context.Context, sessionID, trackID string) (*models.TrackResolution, error)
	MBIDForISRC(ctx context.Context, isrc string) (string, bool, error)
	FeaturesForMBID(ctx context.Context, mbid string) (*models.TrackFeatures, bool, error)
}

// FeaturesHandler exposes the resolution chain.
type FeaturesHandler struct {
	resolver FeatureResolver
}

// NewFeaturesHandler creates a FeaturesHandler.
func NewFeaturesHandler(resolver FeatureResolver) *FeaturesHandler {
	return &FeaturesHandler{resolver: resolver}
}

// Routes implements [Handler].
func (h *FeaturesHandler) Routes() []Route {
	return []Route{
		{http.MethodGet, "/api/tracks/{id}/features", h.track},
		{http.MethodGet, "/api/isrc/{isrc}/recording", h.recording},
		{http.MethodGet, "/api/recordings/{mbid}/features", h.features},
	}
}

// track returns every resolved hop. Absent hops are null.
func (h *FeaturesHandler) track(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionID(r)
	if !ok {
		writeError(w, services.NotAuthorized(nil))
		return
	}

	res, err := h.resolver.ResolveSessionTrack(r.Context(), session, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *FeaturesHandler) recording(w http.ResponseWriter, r *http.Request) {
	mbid, ok, err := h.resolver.MBIDForISRC(r.Context(), r.PathValue("isrc"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeDetail(w, http.StatusNotFound, "No recording found for ISRC")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mbid": mbid})
}

func (h *FeaturesHandler) features(w http.ResponseWriter, r *http.Request) {
	features, ok, err := h.resolver.FeaturesForMBID(r.Context(), r.PathValue("mbid"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeDetail(w, http.StatusNotFound, "No features found for recording")
		return
	}
	writeJSON(w, http.StatusOK, features)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/services"
	"github.com/desertthunder/trackfx/internal/shared"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "spotify_session_id"

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps err to a status code and a {"detail": ...} body.
func writeError(w http.ResponseWriter, err error) {
	var se *services.SpotifyError
	switch {
	case errors.As(err, &se):
		status := se.StatusCode
		if se.AuthError {
			status = http.StatusUnauthorized
		}
		writeDetail(w, status, se.Message)
	case errors.Is(err, shared.ErrInvalidInput):
		writeDetail(w, http.StatusUnprocessableEntity, detail(err, shared.ErrInvalidInput))
	case errors.Is(err, shared.ErrMissingCredentials):
		writeDetail(w, http.StatusInternalServerError, detail(err, shared.ErrMissingCredentials))
	case errors.Is(err, shared.ErrMissingConfig):
		writeDetail(w, http.StatusInternalServerError, detail(err, shared.ErrMissingConfig))
	case errors.Is(err, shared.ErrStore):
		writeDetail(w, http.StatusInternalServerError, "Feature store unavailable")
	default:
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// detail strips the sentinel prefix added by %w wrapping.
func detail(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// sessionID returns the session cookie value, or false when the request has none.
func sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// queryInt reads an integer query parameter. hi < lo means there is no upper bound.
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("%s must be an integer", name)
	}
	if hi < lo {
		if v < lo {
			return 0, invalid("%s must be at least %d", name, lo)
		}
		return v, nil
	}
	if v < lo || v > hi {
		return 0, invalid("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

// page reads limit and offset.
func page(r *http.Request, defLimit, maxLimit int) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", defLimit, 1, maxLimit); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0, 0, -1); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func readBody(w http.ResponseWriter, r *http.Request) (payload.Document, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, invalid("request body is too large")
	}
	doc, err := payload.DecodeDocument(data)
	if err != nil {
		return nil, invalid("request body must be a JSON object")
	}
	return doc, nil
}

// uris reads the non-blank strings of the "uris" list, trimmed.
func uris(doc payload.Document, missing string) ([]string, error) {
	raw, ok := doc.List("uris")
	if !ok {
		return nil, invalid("%s", missing)
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	if len(out) == 0 {
		return nil, invalid("%s", missing)
	}
	return out, nil
}

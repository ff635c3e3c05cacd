package models

// TokenSet is the token mapping returned by the Spotify accounts service.
//
// It always carries access_token once authorized and may carry refresh_token,
// expires_in, scope, token_type or any other provider field, all preserved as-is.
type TokenSet map[string]any

// AccessToken returns the access token if it is a non-empty string.
func (t TokenSet) AccessToken() (string, bool) {
	return t.nonEmpty("access_token")
}

// RefreshToken returns the refresh token if it is a non-empty string.
func (t TokenSet) RefreshToken() (string, bool) {
	return t.nonEmpty("refresh_token")
}

func (t TokenSet) nonEmpty(key string) (string, bool) {
	s, ok := t[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Merge returns a new set with the fields of refreshed overwriting those of t.
//
// The refresh token of t is retained when refreshed does not carry a usable one.
func (t TokenSet) Merge(refreshed TokenSet) TokenSet {
	merged := make(TokenSet, len(t)+len(refreshed))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range refreshed {
		merged[k] = v
	}
	if _, ok := merged.RefreshToken(); !ok {
		if old, ok := t.RefreshToken(); ok {
			merged["refresh_token"] = old
		}
	}
	return merged
}

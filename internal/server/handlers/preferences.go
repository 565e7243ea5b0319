// internal/server/handlers/preferences.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/session"
)

// PreferencesHandler reads and writes the theme and cookie-consent flags.
type PreferencesHandler struct {
	store  session.PreferenceStore
	logger logger.Logger
}

func NewPreferencesHandler(store session.PreferenceStore, log logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "preferences-handler"}),
	}
}

type preferencesRequest struct {
	Theme         *session.Theme `json:"theme"`
	CookieConsent *bool          `json:"cookieConsent"`
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.Get(r.Context(), SessionID(r.Context()))
	if err != nil {
		respondWithError(w, r, h.logger, apperrors.NewPreferencesFailedError(err))
		return
	}
	respondWithData(w, prefs)
}

// Put applies a partial update; omitted fields keep their stored value.
func (h *PreferencesHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, h.logger, apperrors.NewInvalidRequestError("body must be a JSON object"))
		return
	}

	sessionID := SessionID(r.Context())
	prefs, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		respondWithError(w, r, h.logger, apperrors.NewPreferencesFailedError(err))
		return
	}
	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	if req.CookieConsent != nil {
		prefs.CookieConsent = *req.CookieConsent
	}

	saved, err := h.store.Save(r.Context(), prefs)
	if errors.Is(err, session.ErrInvalidTheme) {
		respondWithError(w, r, h.logger, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	if err != nil {
		respondWithError(w, r, h.logger, apperrors.NewPreferencesFailedError(err))
		return
	}
	respondWithData(w, saved)
}

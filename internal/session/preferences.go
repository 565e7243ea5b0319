package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"influence-dashboard/internal/common/logger"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var ErrInvalidTheme = errors.New("INVALID_THEME")

// Preferences is the only state kept beyond a single request.
type Preferences struct {
	SessionID     string    `json:"sessionId"`
	Theme         Theme     `json:"theme"`
	CookieConsent bool      `json:"cookieConsent"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// DefaultPreferences is what a session sees before it saves anything.
func DefaultPreferences(sessionID string) Preferences {
	return Preferences{SessionID: sessionID, Theme: ThemeLight}
}

func (p Preferences) Validate() error {
	if p.Theme != ThemeLight && p.Theme != ThemeDark {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, p.Theme)
	}
	return nil
}

type PreferenceStore interface {
	Get(ctx context.Context, sessionID string) (Preferences, error)
	Save(ctx context.Context, prefs Preferences) (Preferences, error)
}

const (
	createPreferencesTable = `CREATE TABLE IF NOT EXISTS session_preferences (
	session_id     TEXT PRIMARY KEY,
	theme          TEXT NOT NULL DEFAULT 'light',
	cookie_consent BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	selectPreferences = `SELECT theme, cookie_consent, updated_at FROM session_preferences WHERE session_id = $1`

	upsertPreferences = `INSERT INTO session_preferences (session_id, theme, cookie_consent, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id) DO UPDATE SET theme = EXCLUDED.theme, cookie_consent = EXCLUDED.cookie_consent, updated_at = EXCLUDED.updated_at`
)

type PostgresPreferences struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresPreferences(db *sql.DB, log logger.Logger) *PostgresPreferences {
	return &PostgresPreferences{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "preferences"}),
		now:    time.Now,
	}
}

// EnsureSchema creates the preferences table if it is missing.
func (s *PostgresPreferences) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createPreferencesTable); err != nil {
		return fmt.Errorf("create session_preferences: %w", err)
	}
	return nil
}

func (s *PostgresPreferences) Get(ctx context.Context, sessionID string) (Preferences, error) {
	prefs := Preferences{SessionID: sessionID}
	var theme string

	err := s.db.QueryRowContext(ctx, selectPreferences, sessionID).Scan(&theme, &prefs.CookieConsent, &prefs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultPreferences(sessionID), nil
	}
	if err != nil {
		s.logger.Error("failed to load preferences", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}

	prefs.Theme = Theme(theme)
	if prefs.Validate() != nil {
		prefs.Theme = ThemeLight
	}
	return prefs, nil
}

func (s *PostgresPreferences) Save(ctx context.Context, prefs Preferences) (Preferences, error) {
	if err := prefs.Validate(); err != nil {
		return Preferences{}, err
	}
	prefs.UpdatedAt = s.now().UTC()

	if _, err := s.db.ExecContext(ctx, upsertPreferences, prefs.SessionID, string(prefs.Theme), prefs.CookieConsent, prefs.UpdatedAt); err != nil {
		s.logger.Error("failed to save preferences", map[string]interface{}{
			"sessionId": prefs.SessionID,
			"error":     err.Error(),
		})
		return Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}

// MemoryPreferences is used when no database is configured.
type MemoryPreferences struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
	now   func() time.Time
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{prefs: make(map[string]Preferences), now: time.Now}
}

func (s *MemoryPreferences) Get(_ context.Context, sessionID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prefs[sessionID]; ok {
		return p, nil
	}
	return DefaultPreferences(sessionID), nil
}

func (s *MemoryPreferences) Save(_ context.Context, prefs Preferences) (Preferences, error) {
	if err := prefs.Validate(); err != nil {
		return Preferences{}, err
	}
	prefs.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[prefs.SessionID] = prefs
	return prefs, nil
}

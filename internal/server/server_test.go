package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"influence-dashboard/internal/analytics"
	"influence-dashboard/internal/common/config"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/internal/server/handlers"
	"influence-dashboard/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Code      string          `json:"code"`
	Retryable bool            `json:"retryable"`
}

// fakeAnalyticsAPI serves canned responses keyed by path.
func fakeAnalyticsAPI(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get(analytics.APIKeyHeader))
		if h, ok := routes[r.URL.Path]; ok {
			h(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func newTestServer(t *testing.T, upstream *httptest.Server) *Server {
	log := logger.NewTestLogger(t)
	client := analytics.NewClient(analytics.Config{BaseURL: upstream.URL, APIKey: "test-key", Timeout: time.Second}, log)
	svc := dashboard.NewService(client, session.NewMemoryCache(time.Minute), dashboard.Config{}, log)
	boards := dashboard.NewBoards(svc, nil, log)
	return NewServer(config.ServerConfig{Port: 0, CorsOrigins: []string{"*"}}, svc, boards, session.NewMemoryPreferences(), log)
}

func do(t *testing.T, s *Server, method, target, sessionID, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if sessionID != "" {
		req.Header.Set(handlers.SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

const trendingBody = `{"status":"success","data":{"results":[
	{"name":"A","subcategory":"NBA","metrics":{"hype_score":89.2,"rodmn_score":10,"previous_rodmn_score":8}},
	{"name":"B","subcategory":"NBA","metrics":{"hype_score":null,"rodmn_score":12}}
]}}`

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, fakeAnalyticsAPI(t, nil))

	rec, _ := do(t, s, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_TopMovers(t *testing.T) {
	upstream := fakeAnalyticsAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"/trending": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "hype_score", r.URL.Query().Get("metric"))
			writeBody(w, http.StatusOK, trendingBody)
		},
	})
	s := newTestServer(t, upstream)

	rec, env := do(t, s, http.MethodGet, "/api/v1/top-movers?limit=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, handlers.StatusReady, env.Status)

	var entities []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, "A", entities[0].Name)

	assert.True(t, session.ValidID(rec.Header().Get(handlers.SessionHeader)), "a session id is issued")
}

func TestServer_TopMovers_EmptyAndInvalid(t *testing.T) {
	upstream := fakeAnalyticsAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"/trending": func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, http.StatusOK, trendingBody)
		},
	})
	s := newTestServer(t, upstream)

	rec, env := do(t, s, http.MethodGet, "/api/v1/top-movers?subcategory=MLB", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, handlers.StatusEmpty, env.Status)

	for _, target := range []string{"/api/v1/top-movers?limit=0", "/api/v1/top-movers?limit=abc", "/api/v1/top-movers?order=up"} {
		rec, env = do(t, s, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, handlers.StatusError, env.Status, target)
		assert.Equal(t, "INVALID_REQUEST", env.Code, target)
	}
}

func TestServer_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
		wantCode   string
	}{
		{name: "access revoked", status: http.StatusPaymentRequired, wantStatus: http.StatusPaymentRequired, wantCode: "ANALYTICS_ACCESS_REVOKED"},
		{name: "server error", status: http.StatusInternalServerError, wantStatus: http.StatusBadGateway, wantCode: "ANALYTICS_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := fakeAnalyticsAPI(t, map[string]func(http.ResponseWriter, *http.Request){
				"/trending": func(w http.ResponseWriter, r *http.Request) {
					writeBody(w, tt.status, `{"detail":"internal detail that must not leak"}`)
				},
			})
			s := newTestServer(t, upstream)

			rec, env := do(t, s, http.MethodGet, "/api/v1/narrative-alerts", "", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, handlers.StatusError, env.Status)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.NotContains(t, env.Message, "internal detail")
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestServer_Compare(t *testing.T) {
	upstream := fakeAnalyticsAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"/compare": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "LeBron James,Stephen Curry", r.URL.Query().Get("entities"))
			writeBody(w, http.StatusOK, `{"data":[{"name":"LeBron James","hype_score":80},{"name":"Stephen Curry","hype_score":60}]}`)
		},
	})
	s := newTestServer(t, upstream)

	rec, env := do(t, s, http.MethodGet, "/api/v1/compare?entity1=LeBron%20James&entity2=Stephen+Curry&metric=hype_score", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Winner            string `json:"winner"`
		DifferenceDisplay string `json:"differenceDisplay"`
		PercentageDisplay string `json:"percentageDisplay"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "A", res.Winner)
	assert.Equal(t, "+20.00", res.DifferenceDisplay)
	assert.Equal(t, "+33.33%", res.PercentageDisplay)

	rec, env = do(t, s, http.MethodGet, "/api/v1/compare?entity1=LeBron%20James&entity2=Stephen+Curry&higher_is_better=false", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "B", res.Winner)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/compare?entity1=A", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Trend(t *testing.T) {
	upstream := fakeAnalyticsAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"/entities/A/metrics/hype_score/history": func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, http.StatusOK, `[{"date":"2026-03-01","value":76.8},{"date":"2026-03-02","value":89.2}]`)
		},
	})
	s := newTestServer(t, upstream)

	rec, env := do(t, s, http.MethodGet, "/api/v1/trend?entity=A&metric=hype_score", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Trend struct {
			Direction string `json:"direction"`
			Band      struct {
				Name string `json:"name"`
			} `json:"band"`
		} `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "up", res.Trend.Direction)
	assert.Equal(t, "rising", res.Trend.Band.Name)
}

func TestServer_Entities(t *testing.T) {
	upstream := fakeAnalyticsAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"/entities": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "3", r.URL.Query().Get("page"))
			writeBody(w, http.StatusOK, `{"items":[{"name":"A"},{"name":"B"}]}`)
		},
	})
	s := newTestServer(t, upstream)

	rec, env := do(t, s, http.MethodGet, "/api/v1/entities?page=3&page_size=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, handlers.StatusReady, env.Status)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/entities?page=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Dashboard(t *testing.T) {
	upstream := fakeAnalyticsAPI(t, map[string]func(http.ResponseWriter, *http.Request){
		"/trending": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("metric") == "rodmn_score" {
				writeBody(w, http.StatusServiceUnavailable, `{}`)
				return
			}
			writeBody(w, http.StatusOK, trendingBody)
		},
	})
	s := newTestServer(t, upstream)

	rec, env := do(t, s, http.MethodGet, "/api/v1/dashboard?subcategory=NBA", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var panels map[string]struct {
		Status string `json:"status"`
		Error  *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &panels))
	assert.Equal(t, "ready", panels[dashboard.PanelTopMovers].Status)
	assert.Equal(t, "error", panels[dashboard.PanelNarrativeAlerts].Status)
	require.NotNil(t, panels[dashboard.PanelNarrativeAlerts].Error)
	assert.Equal(t, "ANALYTICS_UNAVAILABLE", panels[dashboard.PanelNarrativeAlerts].Error.Code)
}

func TestServer_Preferences(t *testing.T) {
	s := newTestServer(t, fakeAnalyticsAPI(t, nil))
	sessionID := session.NewID()

	rec, env := do(t, s, http.MethodGet, "/api/v1/preferences", sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessionID, rec.Header().Get(handlers.SessionHeader))

	var prefs session.Preferences
	require.NoError(t, json.Unmarshal(env.Data, &prefs))
	assert.Equal(t, session.ThemeLight, prefs.Theme)
	assert.False(t, prefs.CookieConsent)

	rec, _ = do(t, s, http.MethodPut, "/api/v1/preferences", sessionID, `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodPut, "/api/v1/preferences", sessionID, `{"cookieConsent":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = do(t, s, http.MethodGet, "/api/v1/preferences", sessionID, "")
	require.NoError(t, json.Unmarshal(env.Data, &prefs))
	assert.Equal(t, session.ThemeDark, prefs.Theme)
	assert.True(t, prefs.CookieConsent)

	rec, env = do(t, s, http.MethodPut, "/api/v1/preferences", sessionID, `{"theme":"neon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)

	rec, _ = do(t, s, http.MethodPut, "/api/v1/preferences", sessionID, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, fakeAnalyticsAPI(t, nil))

	rec, _ := do(t, s, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

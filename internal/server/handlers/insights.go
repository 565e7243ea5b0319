// internal/server/handlers/insights.go

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/internal/insights/ranking"
	"influence-dashboard/internal/models"
)

// InsightsHandler serves comparison, ranking and trend views.
type InsightsHandler struct {
	service *dashboard.Service
	boards  *dashboard.Boards
	logger  logger.Logger
}

func NewInsightsHandler(service *dashboard.Service, boards *dashboard.Boards, log logger.Logger) *InsightsHandler {
	return &InsightsHandler{
		service: service,
		boards:  boards,
		logger:  log.WithFields(map[string]interface{}{"component": "insights-handler"}),
	}
}

// Compare handles GET /compare?entity1=&entity2=&metric=&higher_is_better=
func (h *InsightsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric := q.Get("metric")
	if metric == "" {
		metric = h.service.Config().TopMoversMetric
	}

	higherIsBetter := models.LookupMetric(metric).HigherIsBetter
	if raw := q.Get("higher_is_better"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, r, h.logger, apperrors.NewInvalidRequestError("higher_is_better must be a boolean"))
			return
		}
		higherIsBetter = v
	}

	result, err := h.service.Compare(r.Context(), SessionID(r.Context()), q.Get("entity1"), q.Get("entity2"), metric, higherIsBetter)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithData(w, result)
}

// TopMovers handles GET /top-movers?subcategory=&metric=&order=&limit=
func (h *InsightsHandler) TopMovers(w http.ResponseWriter, r *http.Request) {
	query, err := parseRankQuery(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	entities, err := h.service.TopMovers(r.Context(), SessionID(r.Context()), query)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithData(w, entities)
}

// NarrativeAlerts handles GET /narrative-alerts?subcategory=&limit=
func (h *InsightsHandler) NarrativeAlerts(w http.ResponseWriter, r *http.Request) {
	query, err := parseRankQuery(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	alerts, err := h.service.NarrativeAlerts(r.Context(), SessionID(r.Context()), query)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithData(w, alerts)
}

// Trend handles GET /trend?entity=&metric=
func (h *InsightsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.Trend(r.Context(), SessionID(r.Context()), q.Get("entity"), q.Get("metric"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if len(result.Points) == 0 {
		respondWithJSON(w, http.StatusOK, Response{Status: StatusEmpty, Data: result})
		return
	}
	respondWithData(w, result)
}

// Entities handles GET /entities?page=&page_size=
func (h *InsightsHandler) Entities(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	pageSize, err := intParam(r, "page_size")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	entities, err := h.service.Entities(r.Context(), SessionID(r.Context()), page, pageSize)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondWithData(w, entities)
}

// Dashboard handles GET /dashboard?subcategory= by refreshing the session's
// board and returning both panels. Panel failures are reported per panel.
func (h *InsightsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var filter dashboard.Filter
	if sub := strings.TrimSpace(r.URL.Query().Get("subcategory")); sub != "" {
		filter.Subcategory = &sub
	}

	board := h.boards.Get(SessionID(r.Context()))
	board.Refresh(r.Context(), filter)
	respondWithJSON(w, http.StatusOK, Response{Status: StatusReady, Data: board.Panels()})
}

func parseRankQuery(r *http.Request) (dashboard.RankQuery, error) {
	q := r.URL.Query()
	query := dashboard.RankQuery{
		Metric: q.Get("metric"),
		Order:  ranking.Order(strings.ToLower(q.Get("order"))),
	}
	if sub := strings.TrimSpace(q.Get("subcategory")); sub != "" {
		query.Subcategory = &sub
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		return dashboard.RankQuery{}, err
	}
	if q.Get("limit") != "" && limit <= 0 {
		return dashboard.RankQuery{}, apperrors.NewInvalidRequestError("limit must be a positive integer")
	}
	query.Limit = limit
	return query, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInvalidRequestError(name + " must be an integer")
	}
	return v, nil
}

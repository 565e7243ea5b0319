package dashboard

import (
	"context"
	"reflect"
	"sync"
	"time"

	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/metrics"
	"influence-dashboard/internal/common/observability"
)

const (
	PanelTopMovers       = "top_movers"
	PanelNarrativeAlerts = "narrative_alerts"
)

type PanelStatus string

const (
	StatusLoading PanelStatus = "loading"
	StatusReady   PanelStatus = "ready"
	StatusEmpty   PanelStatus = "empty"
	StatusError   PanelStatus = "error"
)

type Panel struct {
	Status    PanelStatus              `json:"status"`
	Data      interface{}              `json:"data,omitempty"`
	Error     *apperrors.StandardError `json:"error,omitempty"`
	Filter    Filter                   `json:"filter"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// Filter is the user input shared by both panels.
type Filter struct {
	Subcategory *string `json:"subcategory,omitempty"`
}

// Board is the state of one session's dashboard. Each panel loads on its own
// and a newer Refresh supersedes any load still in flight.
type Board struct {
	sessionID string
	service   *Service
	tracker   *Tracker
	obs       *observability.Observability
	logger    logger.Logger

	mu     sync.RWMutex
	panels map[string]Panel
}

func NewBoard(sessionID string, service *Service, obs *observability.Observability, log logger.Logger) *Board {
	return &Board{
		sessionID: sessionID,
		service:   service,
		tracker:   NewTracker(),
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"sessionId": sessionID}),
		panels: map[string]Panel{
			PanelTopMovers:       {Status: StatusLoading},
			PanelNarrativeAlerts: {Status: StatusLoading},
		},
	}
}

// Refresh reloads both panels concurrently for filter and waits for them.
// Panels are marked loading immediately; a failure in one leaves the other
// untouched.
func (b *Board) Refresh(ctx context.Context, filter Filter) {
	loads := map[string]func(context.Context) (interface{}, error){
		PanelTopMovers: func(ctx context.Context) (interface{}, error) {
			return b.service.TopMovers(ctx, b.sessionID, RankQuery{Subcategory: filter.Subcategory})
		},
		PanelNarrativeAlerts: func(ctx context.Context) (interface{}, error) {
			return b.service.NarrativeAlerts(ctx, b.sessionID, RankQuery{Subcategory: filter.Subcategory})
		},
	}

	var wg sync.WaitGroup
	for name, load := range loads {
		token := b.begin(name, filter)
		wg.Add(1)
		go func(name string, token uint64, load func(context.Context) (interface{}, error)) {
			defer wg.Done()
			b.run(ctx, name, token, filter, load)
		}(name, token, load)
	}
	wg.Wait()
}

func (b *Board) begin(name string, filter Filter) uint64 {
	token := b.tracker.Issue(name)
	b.mu.Lock()
	prev := b.panels[name]
	b.panels[name] = Panel{Status: StatusLoading, Data: prev.Data, Filter: filter, UpdatedAt: time.Now().UTC()}
	b.mu.Unlock()
	return token
}

func (b *Board) run(ctx context.Context, name string, token uint64, filter Filter, load func(context.Context) (interface{}, error)) {
	start := time.Now()
	data, err := load(ctx)

	next := Panel{Filter: filter, UpdatedAt: time.Now().UTC()}
	switch {
	case err != nil:
		next.Status = StatusError
		next.Error = apperrors.FromTransport(err)
	case isEmpty(data):
		next.Status = StatusEmpty
		next.Data = data
	default:
		next.Status = StatusReady
		next.Data = data
	}

	committed := b.tracker.Commit(name, token, func() {
		b.mu.Lock()
		b.panels[name] = next
		b.mu.Unlock()
	})

	outcome := string(next.Status)
	if !committed {
		outcome = "stale"
		metrics.StaleResponsesDiscarded.WithLabelValues(name).Inc()
		b.logger.Debug("discarded stale panel response", map[string]interface{}{
			"panel": name,
			"token": token,
		})
	} else if err != nil {
		b.logger.Error("panel load failed", map[string]interface{}{
			"panel":     name,
			"errorCode": next.Error.Code,
			"error":     err.Error(),
		})
	}
	b.obs.RecordPanelLoad(ctx, name, outcome, time.Since(start))
}

// Panels returns a copy of the current panel states.
func (b *Board) Panels() map[string]Panel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Panel, len(b.panels))
	for k, v := range b.panels {
		out[k] = v
	}
	return out
}

func isEmpty(data interface{}) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return false
	}
}

// DefaultBoardIdleTTL is how long a session's board survives without a Get.
const DefaultBoardIdleTTL = 30 * time.Minute

type boardEntry struct {
	board      *Board
	lastAccess time.Time
}

// Boards keeps one Board per session. Boards idle for longer than the idle
// TTL are evicted on a later Get.
type Boards struct {
	service *Service
	obs     *observability.Observability
	logger  logger.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	boards    map[string]*boardEntry
	lastSweep time.Time
}

func NewBoards(service *Service, obs *observability.Observability, log logger.Logger) *Boards {
	return NewBoardsWithTTL(service, obs, log, DefaultBoardIdleTTL)
}

// NewBoardsWithTTL is NewBoards with an explicit idle TTL. A non-positive ttl
// uses DefaultBoardIdleTTL.
func NewBoardsWithTTL(service *Service, obs *observability.Observability, log logger.Logger, idleTTL time.Duration) *Boards {
	if idleTTL <= 0 {
		idleTTL = DefaultBoardIdleTTL
	}
	return &Boards{
		service: service,
		obs:     obs,
		logger:  log,
		idleTTL: idleTTL,
		now:     time.Now,
		boards:  make(map[string]*boardEntry),
	}
}

func (r *Boards) Get(sessionID string) *Board {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.idleTTL {
		r.sweepLocked(now)
	}

	if e, ok := r.boards[sessionID]; ok {
		e.lastAccess = now
		return e.board
	}
	b := NewBoard(sessionID, r.service, r.obs, r.logger)
	r.boards[sessionID] = &boardEntry{board: b, lastAccess: now}
	return b
}

// Sweep evicts idle boards and reports how many were removed.
func (r *Boards) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

// Len reports how many boards are held.
func (r *Boards) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

func (r *Boards) sweepLocked(now time.Time) int {
	r.lastSweep = now
	evicted := 0
	for id, e := range r.boards {
		if now.Sub(e.lastAccess) > r.idleTTL {
			delete(r.boards, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.Debug("idle boards evicted", map[string]interface{}{
			"evicted":   evicted,
			"remaining": len(r.boards),
		})
	}
	return evicted
}

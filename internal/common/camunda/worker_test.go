package camunda

import (
	"testing"

	"influence-dashboard/internal/common/config"
	"influence-dashboard/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
)

type noopHandler struct{}

func (noopHandler) Handle(worker.JobClient, entities.Job) {}

func TestManager_DisabledWorkerIsNotOpened(t *testing.T) {
	m := NewManager(nil, logger.NewTestLogger(t))

	started := m.Start("rank-entities", config.WorkerConfig{Enabled: false}, noopHandler{})

	assert.False(t, started)
	assert.Empty(t, m.Running())
	assert.NotPanics(t, m.Close)
}

// Package memory implements the storage interfaces with in-process maps.
// It backs unit tests and the "memory" storage address used for local
// development without a SurrealDB instance. Data does not survive restarts.
package memory

import (
	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
)

type Manager struct {
	internalStore *InternalStore
	ledgerStore   *LedgerStore
	cubeStore     *CubeStore
}

func NewManager(logger *common.Logger) *Manager {
	m := &Manager{
		internalStore: NewInternalStore(),
		ledgerStore:   NewLedgerStore(),
		cubeStore:     NewCubeStore(),
	}
	if logger != nil {
		logger.Warn().Msg("Using in-memory storage, data will not persist")
	}
	return m
}

func (m *Manager) InternalStore() interfaces.InternalStore {
	return m.internalStore
}

func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.ledgerStore
}

func (m *Manager) CubeStore() interfaces.CubeStore {
	return m.cubeStore
}

func (m *Manager) Close() error {
	return nil
}

var _ interfaces.StorageManager = (*Manager)(nil)

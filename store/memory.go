package store

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/vario/types"
)

// Memory is a process-local ExperimentRepository.
//
// Records are stored encoded, the same way the shared backends do, so callers
// never alias stored state.
type Memory struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	data     []byte
	revision uint64
}

var _ types.ExperimentRepository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]memoryRecord)}
}

// Create stores a new experiment at revision 1.
func (m *Memory) Create(ctx context.Context, exp *types.Experiment) error {
	if err := ctx.Err(); err != nil {
		return unavailable("create", exp.ID, err)
	}

	data, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[exp.ID]; ok {
		return alreadyExists(exp.ID)
	}

	m.records[exp.ID] = memoryRecord{data: data, revision: 1}
	exp.Revision = 1

	return nil
}

// Load returns a copy of the stored experiment.
func (m *Memory) Load(ctx context.Context, id string) (*types.Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("load", id, err)
	}

	m.mu.Lock()
	rec, ok := m.records[id]
	m.mu.Unlock()

	if !ok {
		return nil, notFound(id)
	}

	return decodeExperiment(id, rec.data, rec.revision)
}

// Save replaces the record if its revision still equals exp.Revision.
func (m *Memory) Save(ctx context.Context, exp *types.Experiment) error {
	if err := ctx.Err(); err != nil {
		return unavailable("save", exp.ID, err)
	}

	data, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[exp.ID]
	if !ok {
		return notFound(exp.ID)
	}
	if rec.revision != exp.Revision {
		return conflict(exp.ID, exp.Revision)
	}

	next := rec.revision + 1
	m.records[exp.ID] = memoryRecord{data: data, revision: next}
	exp.Revision = next

	return nil
}

// Delete removes an experiment. Deleting an unknown id is a no-op.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)

	return nil
}

// MemorySticky is a process-local StickyStore.
type MemorySticky struct {
	entries *xsync.Map[stickyKey, string]
}

type stickyKey struct {
	experimentID string
	token        string
}

var _ types.StickyStore = (*MemorySticky)(nil)

// NewMemorySticky creates an empty in-memory sticky store.
func NewMemorySticky() *MemorySticky {
	return &MemorySticky{entries: xsync.NewMap[stickyKey, string]()}
}

// Get returns the variant mapped to token.
func (s *MemorySticky) Get(_ context.Context, experimentID, token string) (string, bool, error) {
	variantID, ok := s.entries.Load(stickyKey{experimentID: experimentID, token: token})
	return variantID, ok, nil
}

// Set stores the mapping for token unless another value than previous is
// already mapped.
func (s *MemorySticky) Set(_ context.Context, experimentID, token, previous, variantID string) (string, error) {
	key := stickyKey{experimentID: experimentID, token: token}
	stored, _ := s.entries.Compute(key, func(current string, loaded bool) (string, xsync.ComputeOp) {
		if loaded && current != previous {
			return current, xsync.CancelOp
		}

		return variantID, xsync.UpdateOp
	})

	return stored, nil
}

// Len returns the number of stored mappings.
func (s *MemorySticky) Len() int {
	return s.entries.Size()
}

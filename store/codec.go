package store

import (
	"encoding/json"
	"fmt"

	"github.com/arloliu/vario/types"
)

func encodeExperiment(exp *types.Experiment) ([]byte, error) {
	data, err := json.Marshal(exp)
	if err != nil {
		return nil, fmt.Errorf("encode experiment %q: %w", exp.ID, err)
	}

	return data, nil
}

func decodeExperiment(id string, data []byte, revision uint64) (*types.Experiment, error) {
	var exp types.Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("%w: decode experiment %q: %w", types.ErrStoreUnavailable, id, err)
	}
	exp.Revision = revision

	return &exp, nil
}

func unavailable(op, id string, err error) error {
	return fmt.Errorf("%w: %s experiment %q: %w", types.ErrStoreUnavailable, op, id, err)
}

func notFound(id string) error {
	return fmt.Errorf("%w: experiment %q", types.ErrNotFound, id)
}

func conflict(id string, revision uint64) error {
	return fmt.Errorf("%w: experiment %q at revision %d", types.ErrConcurrentUpdate, id, revision)
}

func alreadyExists(id string) error {
	return fmt.Errorf("%w: experiment %q", types.ErrAlreadyExists, id)
}

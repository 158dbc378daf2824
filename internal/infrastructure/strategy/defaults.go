package strategy

import (
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/strategy/batch"
)

// NewRegistryWithDefaults registers the built-in strategies with FIFO as
// the default
func NewRegistryWithDefaults() (*Registry, error) {
	r := NewRegistry()
	fifo := batch.NewFIFOBatchStrategy()
	if err := r.Register(fifo); err != nil {
		return nil, err
	}
	if err := r.SetDefault(fifo.Name()); err != nil {
		return nil, err
	}
	return r, nil
}

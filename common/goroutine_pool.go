package common

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
)

type PoolConfig struct {
	MaxWorkers int
}

// NewPool creates an ants goroutine pool. A non-positive MaxWorkers
// falls back to the number of CPUs.
func NewPool(config PoolConfig) (*ants.Pool, error) {
	workers := config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		log.Warnf("Failed to create ants goroutine_pool: %v", err)
		return nil, errors.Wrap(err, "create goroutine pool")
	}

	log.Debugf("goroutine pool created, workers: %d", workers)
	return pool, nil
}

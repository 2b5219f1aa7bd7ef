package gurobi

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/opt"
)

var (
	defaultConfig   Config
	defaultConfigMu sync.RWMutex
)

// SetDefaultConfig sets the configuration used by solvers created through
// the backend registry. Call it before GetOptimization.
func SetDefaultConfig(config Config) {
	defaultConfigMu.Lock()
	defer defaultConfigMu.Unlock()
	defaultConfig = config
	log.Infof("gurobi: binary %q, timeout %v", config.withDefaults().Binary, config.withDefaults().Timeout)
}

// DefaultConfig returns the configuration registry-created solvers use
func DefaultConfig() Config {
	defaultConfigMu.RLock()
	defer defaultConfigMu.RUnlock()
	return defaultConfig.withDefaults()
}

// init registers the gurobi backend
func init() {
	if err := opt.RegisterBackend("gurobi", func() (opt.Solver, error) {
		return New(DefaultConfig()), nil
	}); err != nil {
		log.Warnf("Failed to register gurobi backend: %v", err)
	}
}

package path_selection

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/topology"
	"github.com/knodir/SOL/traffic"
)

var ErrNoPaths = errors.New("[path_selection] - no admissible path for traffic class")

const (
	DefaultChooser       = "shortest"
	DefaultMaxCandidates = 100
	DefaultCutoffFactor  = 1.5
)

// Config controls candidate generation and selection. Zero values fall
// back to the defaults above, to NullPredicate and to no modifier.
type Config struct {
	Predicate Predicate
	Modifier  Modifier
	Chooser   string
	// NumPaths is the number of paths kept per traffic class, 0 keeps all
	NumPaths int
	// MaxCandidates bounds the simple paths enumerated per ingress-egress pair
	MaxCandidates int
	// CutoffFactor scales the topology diameter into a hop limit
	CutoffFactor float64
	Seed         int64
	Workers      int
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Predicate == nil {
		cfg.Predicate = NullPredicate
	}
	if cfg.Chooser == "" {
		cfg.Chooser = DefaultChooser
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.CutoffFactor <= 0 {
		cfg.CutoffFactor = DefaultCutoffFactor
	}
	return cfg
}

// CandidatePaths enumerates up to maxCandidates loop-free paths for each
// pair, computing pairs concurrently on an ants pool
func CandidatePaths(topo *topology.Topology, pairs []common.IEPair, maxCandidates, maxHops, workers int) (map[common.IEPair][][]int, error) {
	pool, err := common.NewPool(common.PoolConfig{MaxWorkers: workers})
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	net := newNetwork(topo)
	result := make(map[common.IEPair][][]int, len(pairs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, pair := range pairs {
		wg.Add(1)
		ie := pair
		err := pool.Submit(func() {
			defer wg.Done()
			found := kShortest(net, ie.Ingress, ie.Egress, maxCandidates, maxHops)
			mu.Lock()
			result[ie] = found
			mu.Unlock()
			log.Debugf("CandidatePaths: %s has %d candidates", ie, len(found))
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, errors.Wrapf(err, "submit candidate search for %s", ie)
		}
	}
	wg.Wait()
	return result, nil
}

// GeneratePathsPerTrafficClass builds the admissible paths of every class:
// candidates within the hop cutoff, expanded by the modifier, filtered by
// the predicate and reduced by the chooser. Path ids restart at 0 for each
// class. A class left without paths is an error.
func GeneratePathsPerTrafficClass(topo *topology.Topology, tcs []*traffic.TrafficClass, config Config) (*traffic.PPTC, error) {
	cfg := config.withDefaults()
	choose, err := GetChooser(cfg.Chooser, cfg.Seed)
	if err != nil {
		return nil, err
	}

	maxHops := int(math.Ceil(float64(topo.Diameter()) * cfg.CutoffFactor))

	var pairs []common.IEPair
	seen := make(map[common.IEPair]struct{})
	for _, tc := range tcs {
		if _, ok := seen[tc.IEPair()]; !ok {
			seen[tc.IEPair()] = struct{}{}
			pairs = append(pairs, tc.IEPair())
		}
	}

	candidates, err := CandidatePaths(topo, pairs, cfg.MaxCandidates, maxHops, cfg.Workers)
	if err != nil {
		return nil, err
	}

	pptc := traffic.NewPPTC()
	for _, tc := range tcs {
		var admissible []paths.Routable
		for _, nodes := range candidates[tc.IEPair()] {
			p, err := paths.New(0, nodes)
			if err != nil {
				return nil, err
			}
			expanded := []paths.Routable{p}
			if cfg.Modifier != nil {
				expanded, err = cfg.Modifier(p, topo)
				if err != nil {
					return nil, errors.Wrapf(err, "modify %s", p)
				}
			}
			for _, r := range expanded {
				if cfg.Predicate(r, topo) {
					admissible = append(admissible, r)
				}
			}
		}

		chosen := choose(admissible, cfg.NumPaths)
		if len(chosen) == 0 {
			return nil, errors.Wrapf(ErrNoPaths, "%s", tc)
		}
		routes := make([]paths.Routable, len(chosen))
		for i, r := range chosen {
			routes[i] = paths.WithID(r, i)
		}
		if err := pptc.Add(tc, routes...); err != nil {
			return nil, err
		}
	}

	log.Infof("GeneratePathsPerTrafficClass: %d classes, %d paths, hop cutoff %d, chooser %s",
		pptc.Len(), pptc.TotalPaths(), maxHops, cfg.Chooser)
	return pptc, nil
}

package path_selection

import (
	"math/rand"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/paths"
)

// Chooser keeps at most numPaths of the admissible candidates
type Chooser func(candidates []paths.Routable, numPaths int) []paths.Routable

// ChooserFactory builds a chooser; seed drives any randomness
type ChooserFactory func(seed int64) Chooser

var choosers = common.NewRegistry[ChooserFactory]("chooser")

// RegisterChooser makes a chooser selectable by name
func RegisterChooser(name string, factory ChooserFactory) error {
	return choosers.Register(name, factory)
}

// GetChooser looks a chooser up by name (case-insensitive)
func GetChooser(name string, seed int64) (Chooser, error) {
	factory, err := choosers.Get(name)
	if err != nil {
		return nil, err
	}
	return factory(seed), nil
}

func ListChoosers() []string {
	return choosers.List()
}

// RandomChooser samples numPaths candidates without replacement, keeping
// their original order
func RandomChooser(seed int64) Chooser {
	rng := rand.New(rand.NewSource(seed))
	return func(candidates []paths.Routable, numPaths int) []paths.Routable {
		if numPaths <= 0 || len(candidates) <= numPaths {
			return append([]paths.Routable(nil), candidates...)
		}
		picked := rng.Perm(len(candidates))[:numPaths]
		sort.Ints(picked)
		result := make([]paths.Routable, 0, numPaths)
		for _, i := range picked {
			result = append(result, candidates[i])
		}
		return result
	}
}

// ShortestChooser keeps the numPaths shortest candidates. Length counts
// middlebox visits for middlebox paths; ties keep candidate order.
func ShortestChooser(int64) Chooser {
	return func(candidates []paths.Routable, numPaths int) []paths.Routable {
		sorted := append([]paths.Routable(nil), candidates...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return routeLength(sorted[i]) < routeLength(sorted[j])
		})
		if numPaths > 0 && len(sorted) > numPaths {
			sorted = sorted[:numPaths]
		}
		return sorted
	}
}

func routeLength(p paths.Routable) int {
	if mp, ok := p.(*paths.PathWithMbox); ok {
		return mp.FullLength()
	}
	return p.Len()
}

func init() {
	for name, factory := range map[string]ChooserFactory{
		"random":   RandomChooser,
		"shortest": ShortestChooser,
	} {
		if err := RegisterChooser(name, factory); err != nil {
			log.Warnf("Failed to register %s chooser: %v", name, err)
		}
	}
}

package traffic

import (
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/topology"
)

var ErrUnroutable = errors.New("[traffic] - no path between traffic class endpoints")

// ComputeMaxIngressLoad sums volFlows * cost per ingress node and returns
// the largest sum. cost is keyed by traffic class id; a missing entry costs 0.
func ComputeMaxIngressLoad(tcs []*TrafficClass, cost map[int]float64) float64 {
	loads := make(map[int]float64)
	for _, tc := range tcs {
		loads[tc.Src] += tc.VolFlows * cost[tc.ID]
	}

	maxLoad := 0.0
	for _, load := range loads {
		if load > maxLoad {
			maxLoad = load
		}
	}
	return maxLoad
}

// ProvisionLinks routes every class on a shortest path, takes the largest
// per-link byte load, multiplies it by factor and hands that capacity to
// every link of the topology.
func ProvisionLinks(topo *topology.Topology, tcs []*TrafficClass, factor float64) (map[common.Link]float64, error) {
	pairs := make([][2]int, 0, len(tcs))
	for _, tc := range tcs {
		pairs = append(pairs, [2]int{tc.Src, tc.Dst})
	}
	routes := topo.ShortestPaths(pairs)

	loads := make(map[common.Link]float64)
	for _, tc := range tcs {
		nodes, ok := routes[[2]int{tc.Src, tc.Dst}]
		if !ok {
			return nil, errors.Wrapf(ErrUnroutable, "%s", tc)
		}
		for i := 0; i < len(nodes)-1; i++ {
			loads[common.NewLink(nodes[i], nodes[i+1])] += tc.VolBytes
		}
	}

	maxLoad := 0.0
	for _, load := range loads {
		if load > maxLoad {
			maxLoad = load
		}
	}

	caps := make(map[common.Link]float64, topo.LinkCount())
	for _, link := range topo.Links() {
		caps[link] = maxLoad * factor
	}
	log.Infof("ProvisionLinks: max link load %g, capacity %g on %d links", maxLoad, maxLoad*factor, len(caps))
	return caps, nil
}

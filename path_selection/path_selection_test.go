package path_selection

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/topology"
	"github.com/knodir/SOL/traffic"
)

// ring builds 0-1-2-3-0 with links in both directions
func ring(t *testing.T) *topology.Topology {
	topo := topology.NewTopology("ring")
	for i := 0; i < 4; i++ {
		require.NoError(t, topo.AddBiLink(i, (i+1)%4))
	}
	return topo
}

func TestKShortest(t *testing.T) {
	net := newNetwork(ring(t))

	testCases := []struct {
		name     string
		src, dst int
		k        int
		maxHops  int
		expected [][]int
	}{
		{"Adjacent", 0, 1, 5, 0, [][]int{{0, 1}, {0, 3, 2, 1}}},
		{"Opposite", 0, 2, 5, 0, [][]int{{0, 1, 2}, {0, 3, 2}}},
		{"OnlyFirst", 0, 2, 1, 0, [][]int{{0, 1, 2}}},
		{"HopCutoff", 0, 1, 5, 2, [][]int{{0, 1}}},
		{"SameNode", 2, 2, 3, 0, [][]int{{2}}},
		{"UnknownNode", 0, 9, 3, 0, nil},
		{"ZeroK", 0, 1, 0, 0, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, kShortest(net, tc.src, tc.dst, tc.k, tc.maxHops))
		})
	}
}

func TestKShortestUnreachable(t *testing.T) {
	topo := topology.NewTopology("oneway")
	require.NoError(t, topo.AddLink(1, 2))
	net := newNetwork(topo)

	assert.Equal(t, [][]int{{1, 2}}, kShortest(net, 1, 2, 3, 0))
	assert.Empty(t, kShortest(net, 2, 1, 3, 0))
}

func TestCombinations(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {1, 3}, {2, 3}}, combinations([]int{1, 2, 3}, 2))
	assert.Len(t, combinations([]int{1, 2}, 0), 1)
	assert.Nil(t, combinations([]int{1}, 2))
}

func chainTopology(t *testing.T) *topology.Topology {
	topo := ring(t)
	require.NoError(t, topo.SetMbox(1, true))
	require.NoError(t, topo.SetServiceTypes(1, []string{"fw"}))
	require.NoError(t, topo.SetMbox(2, true))
	require.NoError(t, topo.SetServiceTypes(2, []string{"fw", "ids"}))
	return topo
}

func TestPredicatesAndModifier(t *testing.T) {
	topo := chainTopology(t)
	p, err := paths.New(0, []int{0, 1, 2})
	require.NoError(t, err)

	assert.True(t, NullPredicate(p, topo))
	assert.True(t, HasMboxPredicate(p, topo))

	expanded, err := UseMboxModifier(2)(p, topo)
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.Equal(t, []int{1, 2}, expanded[0].(*paths.PathWithMbox).UseMBoxes())
	assert.True(t, ServiceChainPredicate("fw", "ids")(expanded[0], topo))
	assert.False(t, ServiceChainPredicate("ids", "fw")(expanded[0], topo))
	assert.False(t, ServiceChainPredicate("fw", "ids")(p, topo))

	single, err := UseMboxModifier(1)(p, topo)
	require.NoError(t, err)
	assert.Len(t, single, 2)

	noBox, err := paths.New(0, []int{0, 3})
	require.NoError(t, err)
	assert.False(t, HasMboxPredicate(noBox, topo))
	empty, err := paths.NewWithMbox(0, []int{0, 1}, nil)
	require.NoError(t, err)
	assert.False(t, HasMboxPredicate(empty, topo))
}

func candidates(t *testing.T) []paths.Routable {
	var result []paths.Routable
	for i, nodes := range [][]int{{0, 1, 2, 3}, {0, 3}, {0, 1, 3}, {0, 2, 1, 3}} {
		p, err := paths.New(i, nodes)
		require.NoError(t, err)
		result = append(result, p)
	}
	return result
}

func TestChoosers(t *testing.T) {
	assert.Equal(t, []string{"random", "shortest"}, ListChoosers())

	shortest, err := GetChooser("Shortest", 0)
	require.NoError(t, err)
	picked := shortest(candidates(t), 2)
	require.Len(t, picked, 2)
	assert.Equal(t, 1, picked[0].ID())
	assert.Equal(t, 2, picked[1].ID())
	assert.Len(t, shortest(candidates(t), 0), 4)

	first, err := GetChooser("random", 7)
	require.NoError(t, err)
	second, err := GetChooser("random", 7)
	require.NoError(t, err)
	a := first(candidates(t), 2)
	b := second(candidates(t), 2)
	require.Len(t, a, 2)
	assert.Equal(t, a[0].ID(), b[0].ID())
	assert.Equal(t, a[1].ID(), b[1].ID())
	assert.Less(t, a[0].ID(), a[1].ID())
	assert.Len(t, first(candidates(t), 10), 4)

	_, err = GetChooser("best", 0)
	assert.True(t, errors.Is(err, common.ErrNotRegistered))
}

func TestGeneratePathsPerTrafficClass(t *testing.T) {
	topo := chainTopology(t)
	tcs := []*traffic.TrafficClass{
		traffic.NewTrafficClass(0, "allTraffic", 0, 2, 10, 100),
		traffic.NewTrafficClass(1, "allTraffic", 0, 3, 5, 50),
		traffic.NewTrafficClass(2, "other", 0, 2, 1, 10),
	}

	pptc, err := GeneratePathsPerTrafficClass(topo, tcs, Config{Workers: 2})
	require.NoError(t, err)
	require.NoError(t, pptc.Validate())
	assert.Equal(t, 3, pptc.Len())

	routes := pptc.Paths(tcs[0])
	require.Len(t, routes, 2)
	assert.Equal(t, []int{0, 1, 2}, routes[0].Nodes())
	assert.Equal(t, []int{0, 3, 2}, routes[1].Nodes())
	assert.Equal(t, 0, routes[0].ID())
	assert.Equal(t, 1, routes[1].ID())

	limited, err := GeneratePathsPerTrafficClass(topo, tcs, Config{NumPaths: 1, Chooser: "shortest"})
	require.NoError(t, err)
	assert.Equal(t, 1, limited.NumPaths(tcs[1]))
	assert.Equal(t, []int{0, 3}, limited.Paths(tcs[1])[0].Nodes())
}

func TestGenerateServiceChainPaths(t *testing.T) {
	topo := chainTopology(t)
	tc := traffic.NewTrafficClass(0, "allTraffic", 0, 2, 10, 100)

	pptc, err := GeneratePathsPerTrafficClass(topo, []*traffic.TrafficClass{tc}, Config{
		Predicate: ServiceChainPredicate("fw", "ids"),
		Modifier:  UseMboxModifier(2),
		Chooser:   "random",
		NumPaths:  5,
		Seed:      1,
	})
	require.NoError(t, err)

	routes := pptc.Paths(tc)
	require.Len(t, routes, 1)
	mp, ok := routes[0].(*paths.PathWithMbox)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, mp.Nodes())
	assert.Equal(t, []int{1, 2}, mp.UseMBoxes())

	// no path visits an ids box before a fw box
	_, err = GeneratePathsPerTrafficClass(topo, []*traffic.TrafficClass{tc}, Config{
		Predicate: ServiceChainPredicate("ids", "fw"),
		Modifier:  UseMboxModifier(2),
	})
	assert.True(t, errors.Is(err, ErrNoPaths))

	_, err = GeneratePathsPerTrafficClass(topo, []*traffic.TrafficClass{tc}, Config{Chooser: "bogus"})
	assert.Error(t, err)
}

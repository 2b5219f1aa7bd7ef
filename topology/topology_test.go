package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knodir/SOL/common"
)

// ring builds 0-1-2-3-0 with links in both directions
func ring(t *testing.T) *Topology {
	topo := NewTopology("ring")
	for i := 0; i < 4; i++ {
		require.NoError(t, topo.AddBiLink(i, (i+1)%4))
	}
	return topo
}

func TestTopologyElements(t *testing.T) {
	topo := ring(t)

	assert.Equal(t, []int{0, 1, 2, 3}, topo.Nodes())
	assert.Equal(t, 4, topo.NodeCount())
	assert.Equal(t, 8, topo.LinkCount())
	assert.True(t, topo.HasLink(common.NewLink(3, 0)))
	assert.False(t, topo.HasLink(common.NewLink(0, 2)))
	assert.True(t, topo.HasElement(common.NodeElem(2)))
	assert.False(t, topo.HasElement(common.NodeElem(9)))
	assert.ElementsMatch(t, []int{1, 3}, topo.Successors(0))

	err := topo.AddLink(1, 1)
	assert.True(t, errors.Is(err, ErrSelfLink))
}

func TestTopologyResources(t *testing.T) {
	topo := ring(t)

	require.NoError(t, topo.SetNodeResource(0, "cpu", 10))
	require.NoError(t, topo.SetNodeResource(2, "cpu", 20))
	require.NoError(t, topo.SetLinkResource(common.NewLink(0, 1), "bw", 100))

	assert.Equal(t, map[int]float64{0: 10, 2: 20}, topo.NodeCapacities("cpu"))
	assert.Equal(t, map[common.Link]float64{common.NewLink(0, 1): 100}, topo.LinkCapacities("bw"))
	assert.Empty(t, topo.NodeCapacities("bw"))

	assert.True(t, topo.HasResource(common.NodeElem(0), "cpu"))
	assert.False(t, topo.HasResource(common.NodeElem(1), "cpu"))
	assert.True(t, topo.HasResource(common.LinkElem(common.NewLink(0, 1)), "bw"))
	assert.False(t, topo.HasResource(common.LinkElem(common.NewLink(1, 0)), "bw"))

	// returned tables are copies
	table := topo.Resources(common.NodeElem(0))
	table["cpu"] = 99
	assert.Equal(t, 10.0, topo.Resources(common.NodeElem(0))["cpu"])

	assert.True(t, errors.Is(topo.SetNodeResource(7, "cpu", 1), ErrUnknownNode))
	assert.True(t, errors.Is(topo.SetLinkResource(common.NewLink(0, 2), "bw", 1), ErrUnknownLink))
}

func TestTopologyMiddleboxes(t *testing.T) {
	topo := ring(t)

	require.NoError(t, topo.SetMbox(3, true))
	require.NoError(t, topo.SetMbox(1, true))
	require.NoError(t, topo.SetServiceTypes(1, []string{"fw", "ids"}))

	assert.Equal(t, []int{1, 3}, topo.MboxNodes())
	assert.True(t, topo.IsMbox(1))
	assert.False(t, topo.IsMbox(0))
	assert.Equal(t, []string{"fw", "ids"}, topo.ServiceTypes(1))
	assert.Nil(t, topo.ServiceTypes(42))
}

func TestShortestPathAndDiameter(t *testing.T) {
	topo := ring(t)

	p, ok := topo.ShortestPath(0, 1)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, p)

	p, ok = topo.ShortestPath(0, 2)
	require.True(t, ok)
	assert.Len(t, p, 3)
	assert.Equal(t, 0, p[0])
	assert.Equal(t, 2, p[2])

	topo.AddNode(9)
	_, ok = topo.ShortestPath(0, 9)
	assert.False(t, ok)

	assert.Equal(t, 2, topo.Diameter())

	all := topo.ShortestPaths([][2]int{{0, 1}, {1, 3}, {0, 9}})
	assert.Len(t, all, 2)
	assert.Len(t, all[[2]int{1, 3}], 3)
}

func TestLoadTopologyFiles(t *testing.T) {
	yamlTopo := `
name: triangle
bidirectional: true
nodes:
  - id: 1
    mbox: true
    services: [fw]
    resources:
      cpu: 50
  - id: 2
  - id: 3
links:
  - src: 1
    dst: 2
    resources:
      bw: 10
  - src: 2
    dst: 3
`
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "triangle.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(yamlTopo), 0644))

	topo, err := Load(yamlFile)
	require.NoError(t, err)

	assert.Equal(t, "triangle", topo.Name)
	assert.Equal(t, 3, topo.NodeCount())
	assert.Equal(t, 4, topo.LinkCount())
	assert.True(t, topo.IsMbox(1))
	assert.Equal(t, []string{"fw"}, topo.ServiceTypes(1))
	assert.Equal(t, 50.0, topo.NodeCapacities("cpu")[1])
	assert.Equal(t, 10.0, topo.LinkCapacities("bw")[common.NewLink(2, 1)])

	// round trip through json
	jsonFile := filepath.Join(dir, "triangle.json")
	require.NoError(t, topo.WriteToFile(jsonFile))
	again, err := Load(jsonFile)
	require.NoError(t, err)
	assert.Equal(t, topo.Nodes(), again.Nodes())
	assert.Equal(t, topo.Links(), again.Links())
	assert.Equal(t, topo.LinkCapacities("bw"), again.LinkCapacities("bw"))

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

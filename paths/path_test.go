package paths

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/knodir/SOL/common"
)

func mustPath(t *testing.T, id int, nodes ...int) *Path {
	p, err := New(id, nodes)
	require.NoError(t, err)
	return p
}

func mustMbox(t *testing.T, id int, nodes []int, boxes []int) *PathWithMbox {
	p, err := NewWithMbox(id, nodes, boxes)
	require.NoError(t, err)
	return p
}

func TestPathLinks(t *testing.T) {
	testCases := []struct {
		name  string
		nodes []int
		links []common.Link
	}{
		{"SingleNode", []int{4}, []common.Link{}},
		{"TwoNodes", []int{1, 2}, []common.Link{{Src: 1, Dst: 2}}},
		{"Chain", []int{1, 2, 3, 7}, []common.Link{{Src: 1, Dst: 2}, {Src: 2, Dst: 3}, {Src: 3, Dst: 7}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := mustPath(t, 0, tc.nodes...)
			assert.Equal(t, tc.links, p.Links())
			assert.Len(t, p.Links(), len(tc.nodes)-1)
			assert.Equal(t, tc.nodes[0], p.Ingress())
			assert.Equal(t, tc.nodes[len(tc.nodes)-1], p.Egress())
			assert.Equal(t, common.IEPair{Ingress: tc.nodes[0], Egress: tc.nodes[len(tc.nodes)-1]}, p.IEPair())
			assert.Equal(t, len(tc.nodes), p.Len())
		})
	}
}

func TestPathIsImmutable(t *testing.T) {
	nodes := []int{1, 2, 3}
	p := mustPath(t, 0, nodes...)
	nodes[0] = 9
	assert.Equal(t, []int{1, 2, 3}, p.Nodes())

	got := p.Nodes()
	got[1] = 9
	assert.Equal(t, []int{1, 2, 3}, p.Nodes())

	links := p.Links()
	links[0] = common.NewLink(5, 5)
	assert.Equal(t, common.NewLink(1, 2), p.Links()[0])
}

func TestPathIteration(t *testing.T) {
	p := mustPath(t, 0, 5, 6, 7)
	var seen []int
	for n := range p.All() {
		seen = append(seen, n)
	}
	assert.Equal(t, []int{5, 6, 7}, seen)

	seen = seen[:0]
	for n := range p.All() {
		seen = append(seen, n)
		if n == 6 {
			break
		}
	}
	assert.Equal(t, []int{5, 6}, seen)
}

func TestEmptyPathRejected(t *testing.T) {
	_, err := New(0, nil)
	assert.True(t, errors.Is(err, ErrEmptyPath))
	_, err = NewWithMbox(0, []int{}, nil)
	assert.True(t, errors.Is(err, ErrEmptyPath))
}

func TestPathEquality(t *testing.T) {
	a := mustPath(t, 0, 1, 2, 3)
	b := mustPath(t, 1, 1, 2, 3)
	c := mustPath(t, 0, 3, 2, 1)

	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	m := mustMbox(t, 0, []int{1, 2, 3}, nil)
	assert.False(t, a.Equal(m))
	assert.False(t, m.Equal(a))
}

func TestMboxPathEquality(t *testing.T) {
	a := mustMbox(t, 0, []int{1, 2, 3}, []int{2})
	b := mustMbox(t, 5, []int{1, 2, 3}, []int{2})
	c := mustMbox(t, 0, []int{1, 2, 3}, []int{3})
	d := mustMbox(t, 0, []int{1, 2, 3}, []int{2, 3})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestMboxPath(t *testing.T) {
	p := mustMbox(t, 3, []int{1, 2, 3, 4}, []int{2, 4})

	assert.Equal(t, 6, p.FullLength())
	assert.Equal(t, 4, p.Len())
	assert.True(t, p.UsesBox(2))
	assert.False(t, p.UsesBox(3))
	assert.Equal(t, []int{2, 4}, p.UseMBoxes())
	assert.Equal(t, 3, p.ID())
	assert.True(t, p.HasLink(common.NewLink(3, 4)))

	noBoxes := mustMbox(t, 0, []int{1, 2}, nil)
	assert.Equal(t, 2, noBoxes.FullLength())

	dup := mustMbox(t, 0, []int{1, 2}, []int{2, 2})
	assert.Equal(t, 4, dup.FullLength())

	_, err := NewWithMbox(0, []int{1, 2, 3}, []int{5})
	assert.True(t, errors.Is(err, ErrMboxNotOnPath))
}

func TestCompare(t *testing.T) {
	short := mustPath(t, 0, 1, 2)
	long := mustPath(t, 1, 1, 3, 2)

	less, err := Less(short, long)
	require.NoError(t, err)
	assert.True(t, less)

	c, err := Compare(long, mustPath(t, 7, 1, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = Compare(mustPath(t, 0, 1, 2, 3), mustPath(t, 0, 1, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	m1 := mustMbox(t, 0, []int{1, 2}, []int{2})
	m2 := mustMbox(t, 0, []int{1, 2, 3}, nil)
	c, err = Compare(m1, m2)
	require.NoError(t, err)
	assert.Equal(t, -1, c, "same full length, decided by nodes")

	_, err = Compare(short, m1)
	assert.True(t, errors.Is(err, ErrIncomparable))
	_, err = Less(m1, short)
	assert.True(t, errors.Is(err, ErrIncomparable))
}

func TestWithID(t *testing.T) {
	p := mustPath(t, 0, 1, 2)
	q := WithID(p, 9)
	assert.Equal(t, 9, q.ID())
	assert.Equal(t, 0, p.ID())
	assert.True(t, p.Equal(q))

	m := mustMbox(t, 0, []int{1, 2}, []int{1})
	n := WithID(m, 4)
	assert.Equal(t, 4, n.ID())
	assert.True(t, m.Equal(n))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name     string
		path     Routable
		numFlows float64
	}{
		{"Plain", mustPath(t, 1, 1, 2, 3), 12.5},
		{"PlainNoFlows", mustPath(t, 2, 4), 0},
		{"Mbox", mustMbox(t, 3, []int{1, 2, 3}, []int{2, 3}), 7},
		{"MboxWithoutBoxes", mustMbox(t, 4, []int{1, 2}, nil), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, flows, err := Decode(tc.path.Encode(tc.numFlows), tc.path.ID())
			require.NoError(t, err)
			assert.True(t, tc.path.Equal(decoded))
			assert.Equal(t, tc.numFlows, flows)

			// through json, where numbers come back as float64
			raw, err := json.Marshal(tc.path.Encode(tc.numFlows))
			require.NoError(t, err)
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &m))
			decoded, flows, err = Decode(m, tc.path.ID())
			require.NoError(t, err)
			assert.True(t, tc.path.Equal(decoded))
			assert.Equal(t, tc.numFlows, flows)
		})
	}
}

func TestEncodeDiscriminator(t *testing.T) {
	m := mustMbox(t, 0, []int{1, 2}, []int{2}).Encode(0)
	assert.Equal(t, true, m["PathWithMbox"])

	plain := mustPath(t, 0, 1, 2).Encode(0)
	_, ok := plain["PathWithMbox"]
	assert.False(t, ok)
	_, ok = plain["useMBoxes"]
	assert.False(t, ok)
}

func TestDecodeDefaultsAndErrors(t *testing.T) {
	p, flows, err := Decode(map[string]interface{}{"nodes": []interface{}{1.0, 2.0}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, flows)
	_, isPlain := p.(*Path)
	assert.True(t, isPlain)

	p, _, err = Decode(map[string]interface{}{"nodes": []int{1, 2}, "PathWithMbox": true}, 0)
	require.NoError(t, err)
	mp, isMbox := p.(*PathWithMbox)
	require.True(t, isMbox)
	assert.Empty(t, mp.UseMBoxes())

	p, _, err = Decode(map[string]interface{}{"nodes": []int{1, 2}, "useMBoxes": []int{1}}, 0)
	require.NoError(t, err)
	_, isMbox = p.(*PathWithMbox)
	assert.True(t, isMbox)

	bad := []map[string]interface{}{
		{},
		{"nodes": "1,2"},
		{"nodes": []interface{}{1.5}},
		{"nodes": []int{1}, "numFlows": "many"},
		{"nodes": []int{1}, "numFlows": -1.0},
		{"nodes": []int{1, 2}, "useMBoxes": []int{3}},
		{"nodes": []int{}},
	}
	for _, m := range bad {
		_, _, err := Decode(m, 0)
		assert.Error(t, err, "%v", m)
	}
}

func TestRecordYAML(t *testing.T) {
	ft := NewFlowTable()
	routes := []Routable{mustPath(t, 1, 1, 2), mustMbox(t, 2, []int{1, 3, 2}, []int{3})}
	ft.Set(1, 4)
	ft.Set(2, 6)

	records := ft.Records(routes)
	raw, err := yaml.Marshal(records)
	require.NoError(t, err)

	var back []Record
	require.NoError(t, yaml.Unmarshal(raw, &back))
	require.Len(t, back, 2)
	for i, rec := range back {
		p, err := rec.Routable()
		require.NoError(t, err)
		assert.True(t, routes[i].Equal(p))
		assert.Equal(t, routes[i].ID(), p.ID())
	}
	assert.Equal(t, 6.0, back[1].NumFlows)
	assert.Equal(t, 10.0, ft.Total())
	assert.Equal(t, 0.0, ft.Get(99))
}

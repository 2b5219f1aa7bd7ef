package topology

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
)

var (
	ErrUnknownNode = errors.New("[topology] - unknown node")
	ErrUnknownLink = errors.New("[topology] - unknown link")
	ErrSelfLink    = errors.New("[topology] - link endpoints are the same node")
)

type nodeAttrs struct {
	resources map[string]float64
	mbox      bool
	services  []string
}

// Topology is a directed network graph whose nodes and links carry named
// resource capacities. Nodes may host middleboxes offering service types.
type Topology struct {
	Name string

	nodes     map[int]*nodeAttrs
	nodeOrder []int
	links     map[common.Link]map[string]float64
	linkOrder []common.Link
	succ      map[int][]int
	mutex     sync.RWMutex
}

func NewTopology(name string) *Topology {
	return &Topology{
		Name:  name,
		nodes: make(map[int]*nodeAttrs),
		links: make(map[common.Link]map[string]float64),
		succ:  make(map[int][]int),
	}
}

// AddNode adds a node; adding an existing node is a no-op
func (t *Topology) AddNode(node int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.addNodeLocked(node)
}

func (t *Topology) addNodeLocked(node int) *nodeAttrs {
	if attrs, exists := t.nodes[node]; exists {
		return attrs
	}
	attrs := &nodeAttrs{resources: make(map[string]float64)}
	t.nodes[node] = attrs
	t.nodeOrder = append(t.nodeOrder, node)
	return attrs
}

// AddLink adds a directed link, creating missing endpoints
func (t *Topology) AddLink(src, dst int) error {
	if src == dst {
		return errors.Wrapf(ErrSelfLink, "%d", src)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.addNodeLocked(src)
	t.addNodeLocked(dst)

	link := common.NewLink(src, dst)
	if _, exists := t.links[link]; exists {
		return nil
	}
	t.links[link] = make(map[string]float64)
	t.linkOrder = append(t.linkOrder, link)
	t.succ[src] = append(t.succ[src], dst)
	return nil
}

// AddBiLink adds the link in both directions
func (t *Topology) AddBiLink(a, b int) error {
	if err := t.AddLink(a, b); err != nil {
		return err
	}
	return t.AddLink(b, a)
}

// Nodes returns node identifiers in insertion order
func (t *Topology) Nodes() []int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	nodes := make([]int, len(t.nodeOrder))
	copy(nodes, t.nodeOrder)
	return nodes
}

// Links returns links in insertion order
func (t *Topology) Links() []common.Link {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	links := make([]common.Link, len(t.linkOrder))
	copy(links, t.linkOrder)
	return links
}

func (t *Topology) NodeCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.nodes)
}

func (t *Topology) LinkCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.links)
}

func (t *Topology) HasNode(node int) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	_, exists := t.nodes[node]
	return exists
}

func (t *Topology) HasLink(link common.Link) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	_, exists := t.links[link]
	return exists
}

// HasElement reports whether the node or link exists in the topology
func (t *Topology) HasElement(e common.Element) bool {
	if e.IsLink() {
		return t.HasLink(e.Link)
	}
	return t.HasNode(e.Node)
}

// Successors returns the nodes reachable from node over one link
func (t *Topology) Successors(node int) []int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	next := make([]int, len(t.succ[node]))
	copy(next, t.succ[node])
	return next
}

// SetNodeResource sets the capacity of a named resource on a node
func (t *Topology) SetNodeResource(node int, resource string, capacity float64) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	attrs, exists := t.nodes[node]
	if !exists {
		return errors.Wrapf(ErrUnknownNode, "%d", node)
	}
	attrs.resources[resource] = capacity
	return nil
}

// SetLinkResource sets the capacity of a named resource on a link
func (t *Topology) SetLinkResource(link common.Link, resource string, capacity float64) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	table, exists := t.links[link]
	if !exists {
		return errors.Wrapf(ErrUnknownLink, "%s", link)
	}
	table[resource] = capacity
	return nil
}

// Resources returns a copy of the resource table (name -> capacity) of a
// node or link. Unknown elements have an empty table.
func (t *Topology) Resources(e common.Element) map[string]float64 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	var table map[string]float64
	if e.IsLink() {
		table = t.links[e.Link]
	} else if attrs, exists := t.nodes[e.Node]; exists {
		table = attrs.resources
	}

	result := make(map[string]float64, len(table))
	for name, capacity := range table {
		result[name] = capacity
	}
	return result
}

// HasResource reports whether the element's table defines the resource
func (t *Topology) HasResource(e common.Element, resource string) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if e.IsLink() {
		_, ok := t.links[e.Link][resource]
		return ok
	}
	attrs, exists := t.nodes[e.Node]
	if !exists {
		return false
	}
	_, ok := attrs.resources[resource]
	return ok
}

// NodeCapacities returns the capacities of resource on the nodes that define it
func (t *Topology) NodeCapacities(resource string) map[int]float64 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	caps := make(map[int]float64)
	for node, attrs := range t.nodes {
		if capacity, ok := attrs.resources[resource]; ok {
			caps[node] = capacity
		}
	}
	return caps
}

// LinkCapacities returns the capacities of resource on the links that define it
func (t *Topology) LinkCapacities(resource string) map[common.Link]float64 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	caps := make(map[common.Link]float64)
	for link, table := range t.links {
		if capacity, ok := table[resource]; ok {
			caps[link] = capacity
		}
	}
	return caps
}

// SetMbox marks whether a middlebox is attached to the node
func (t *Topology) SetMbox(node int, mbox bool) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	attrs, exists := t.nodes[node]
	if !exists {
		return errors.Wrapf(ErrUnknownNode, "%d", node)
	}
	attrs.mbox = mbox
	return nil
}

func (t *Topology) IsMbox(node int) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	attrs, exists := t.nodes[node]
	return exists && attrs.mbox
}

// MboxNodes returns the middlebox nodes, sorted
func (t *Topology) MboxNodes() []int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	var nodes []int
	for node, attrs := range t.nodes {
		if attrs.mbox {
			nodes = append(nodes, node)
		}
	}
	sort.Ints(nodes)
	return nodes
}

// SetServiceTypes sets the services (e.g. "fw", "ids") a node's middlebox offers
func (t *Topology) SetServiceTypes(node int, services []string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	attrs, exists := t.nodes[node]
	if !exists {
		return errors.Wrapf(ErrUnknownNode, "%d", node)
	}
	attrs.services = append([]string(nil), services...)
	log.Debugf("node %d service types: %v", node, attrs.services)
	return nil
}

func (t *Topology) ServiceTypes(node int) []string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	attrs, exists := t.nodes[node]
	if !exists {
		return nil
	}
	return append([]string(nil), attrs.services...)
}

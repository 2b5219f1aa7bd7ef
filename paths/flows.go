package paths

import "sort"

// FlowTable holds the number of flows assigned to each path, keyed by path
// id. It is filled after a solve; the paths themselves stay unchanged.
// Not safe for concurrent writers.
type FlowTable map[int]float64

func NewFlowTable() FlowTable {
	return make(FlowTable)
}

func (ft FlowTable) Set(pathID int, numFlows float64) {
	ft[pathID] = numFlows
}

// Get returns the flows on a path, 0 when nothing was assigned
func (ft FlowTable) Get(pathID int) float64 {
	return ft[pathID]
}

// Total sums the flows over all paths
func (ft FlowTable) Total() float64 {
	ids := make([]int, 0, len(ft))
	for id := range ft {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	total := 0.0
	for _, id := range ids {
		total += ft[id]
	}
	return total
}

// Records pairs each path with its assigned flows
func (ft FlowTable) Records(routes []Routable) []Record {
	records := make([]Record, 0, len(routes))
	for _, p := range routes {
		records = append(records, NewRecord(p, ft.Get(p.ID())))
	}
	return records
}

package traffic

import (
	"fmt"
	"sort"

	"github.com/knodir/SOL/common"
)

// TrafficClass is an aggregate demand between an ingress and an egress node
type TrafficClass struct {
	ID       int                `json:"id" yaml:"id"`
	Name     string             `json:"name" yaml:"name"`
	Src      int                `json:"src" yaml:"src"`
	Dst      int                `json:"dst" yaml:"dst"`
	Priority int                `json:"priority" yaml:"priority"`
	VolFlows float64            `json:"volFlows" yaml:"volFlows"`
	VolBytes float64            `json:"volBytes" yaml:"volBytes"`
	Attrs    map[string]float64 `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

func NewTrafficClass(id int, name string, src, dst int, volFlows, volBytes float64) *TrafficClass {
	return &TrafficClass{
		ID:       id,
		Name:     name,
		Src:      src,
		Dst:      dst,
		VolFlows: volFlows,
		VolBytes: volBytes,
		Attrs:    make(map[string]float64),
	}
}

func (tc *TrafficClass) IEPair() common.IEPair {
	return common.IEPair{Ingress: tc.Src, Egress: tc.Dst}
}

// Attr returns a numeric attribute, 0 when it was never set
func (tc *TrafficClass) Attr(name string) float64 {
	return tc.Attrs[name]
}

func (tc *TrafficClass) SetAttr(name string, value float64) {
	if tc.Attrs == nil {
		tc.Attrs = make(map[string]float64)
	}
	tc.Attrs[name] = value
}

func (tc *TrafficClass) String() string {
	return fmt.Sprintf("TrafficClass(tcID=%d, name=%s, IE=%s, flows=%g, bytes=%g)",
		tc.ID, tc.Name, tc.IEPair(), tc.VolFlows, tc.VolBytes)
}

// GenerateTrafficClasses splits the matrix volume of every pair into one
// class per name in fractions. volFlows is fraction * matrix volume and
// volBytes is volFlows * classBytes[name]. Ids are assigned in order,
// pairs as given and names sorted.
func GenerateTrafficClasses(pairs []common.IEPair, m Matrix, fractions, classBytes map[string]float64) []*TrafficClass {
	names := make([]string, 0, len(fractions))
	for name := range fractions {
		names = append(names, name)
	}
	sort.Strings(names)

	var tcs []*TrafficClass
	id := 0
	for _, pair := range pairs {
		for _, name := range names {
			volFlows := fractions[name] * m[pair]
			tcs = append(tcs, NewTrafficClass(id, name, pair.Ingress, pair.Egress, volFlows, volFlows*classBytes[name]))
			id++
		}
	}
	return tcs
}

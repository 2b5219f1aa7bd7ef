package traffic

import (
	"iter"

	"github.com/cockroachdb/errors"

	"github.com/knodir/SOL/paths"
)

var (
	ErrDuplicateClass = errors.New("[traffic] - traffic class registered twice")
	ErrPathMismatch   = errors.New("[traffic] - path does not connect the traffic class endpoints")
	ErrDuplicatePath  = errors.New("[traffic] - path id repeated within a traffic class")
)

// PPTC holds the admissible paths per traffic class. Classes keep their
// insertion order so that everything built from a PPTC is deterministic.
type PPTC struct {
	classes []*TrafficClass
	byID    map[int]*TrafficClass
	routes  map[int][]paths.Routable
}

func NewPPTC() *PPTC {
	return &PPTC{
		byID:   make(map[int]*TrafficClass),
		routes: make(map[int][]paths.Routable),
	}
}

// Add appends routes to tc. A different class object with an id already
// present is an error.
func (p *PPTC) Add(tc *TrafficClass, routes ...paths.Routable) error {
	if known, ok := p.byID[tc.ID]; ok {
		if known != tc {
			return errors.Wrapf(ErrDuplicateClass, "tcID=%d", tc.ID)
		}
	} else {
		p.byID[tc.ID] = tc
		p.classes = append(p.classes, tc)
	}
	p.routes[tc.ID] = append(p.routes[tc.ID], routes...)
	return nil
}

// Classes returns the traffic classes in insertion order
func (p *PPTC) Classes() []*TrafficClass {
	return append([]*TrafficClass(nil), p.classes...)
}

func (p *PPTC) Class(id int) (*TrafficClass, bool) {
	tc, ok := p.byID[id]
	return tc, ok
}

// Paths returns the candidate paths of tc
func (p *PPTC) Paths(tc *TrafficClass) []paths.Routable {
	return append([]paths.Routable(nil), p.routes[tc.ID]...)
}

func (p *PPTC) NumPaths(tc *TrafficClass) int {
	return len(p.routes[tc.ID])
}

// TotalPaths counts paths over all classes
func (p *PPTC) TotalPaths() int {
	n := 0
	for _, routes := range p.routes {
		n += len(routes)
	}
	return n
}

// Len is the number of traffic classes
func (p *PPTC) Len() int {
	return len(p.classes)
}

// All yields each class with its paths, in insertion order
func (p *PPTC) All() iter.Seq2[*TrafficClass, []paths.Routable] {
	return func(yield func(*TrafficClass, []paths.Routable) bool) {
		for _, tc := range p.classes {
			if !yield(tc, p.routes[tc.ID]) {
				return
			}
		}
	}
}

// Merge returns a PPTC holding the classes of p followed by those of
// other. Classes are shared, not copied.
func (p *PPTC) Merge(other *PPTC) (*PPTC, error) {
	merged := NewPPTC()
	for _, src := range []*PPTC{p, other} {
		for tc, routes := range src.All() {
			if known, ok := merged.byID[tc.ID]; ok && known != tc {
				return nil, errors.Wrapf(ErrDuplicateClass, "tcID=%d", tc.ID)
			}
			if err := merged.Add(tc, routes...); err != nil {
				return nil, err
			}
		}
	}
	return merged, nil
}

// Validate checks that every path runs from its class's src to dst and
// that path ids are unique within a class
func (p *PPTC) Validate() error {
	for tc, routes := range p.All() {
		seen := make(map[int]struct{}, len(routes))
		for _, r := range routes {
			if r.Ingress() != tc.Src || r.Egress() != tc.Dst {
				return errors.Wrapf(ErrPathMismatch, "%s on %s", r, tc)
			}
			if _, dup := seen[r.ID()]; dup {
				return errors.Wrapf(ErrDuplicatePath, "path %d of %s", r.ID(), tc)
			}
			seen[r.ID()] = struct{}{}
		}
	}
	return nil
}

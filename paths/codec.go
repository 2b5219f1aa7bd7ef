package paths

import (
	"encoding/json"
	"math"

	"github.com/cockroachdb/errors"
)

// mboxDiscriminator flags an encoded middlebox path
const mboxDiscriminator = "PathWithMbox"

// Decode rebuilds a path from its structural form. "nodes" is required and
// "numFlows" defaults to 0. A record carrying "useMBoxes" or the
// PathWithMbox flag decodes to a PathWithMbox; a missing "useMBoxes" then
// means no middleboxes.
func Decode(m map[string]interface{}, id int) (Routable, float64, error) {
	rawNodes, ok := m["nodes"]
	if !ok {
		return nil, 0, errors.Wrap(ErrMalformedPath, "missing nodes")
	}
	nodes, err := toIntSlice(rawNodes)
	if err != nil {
		return nil, 0, errors.Wrap(err, "nodes")
	}

	var numFlows float64
	if raw, ok := m["numFlows"]; ok && raw != nil {
		numFlows, err = toFloat(raw)
		if err != nil {
			return nil, 0, errors.Wrap(err, "numFlows")
		}
		if numFlows < 0 {
			return nil, 0, errors.Wrapf(ErrMalformedPath, "negative numFlows %v", numFlows)
		}
	}

	rawBoxes, hasBoxes := m["useMBoxes"]
	isMbox, _ := m[mboxDiscriminator].(bool)
	if !hasBoxes && !isMbox {
		p, err := New(id, nodes)
		return p, numFlows, err
	}

	var boxes []int
	if hasBoxes && rawBoxes != nil {
		boxes, err = toIntSlice(rawBoxes)
		if err != nil {
			return nil, 0, errors.Wrap(err, "useMBoxes")
		}
	}
	p, err := NewWithMbox(id, nodes, boxes)
	if err != nil {
		return nil, 0, err
	}
	return p, numFlows, nil
}

func toIntSlice(raw interface{}) ([]int, error) {
	switch v := raw.(type) {
	case []int:
		return append([]int(nil), v...), nil
	case []interface{}:
		result := make([]int, len(v))
		for i, item := range v {
			f, err := toFloat(item)
			if err != nil {
				return nil, err
			}
			if f != math.Trunc(f) {
				return nil, errors.Wrapf(ErrMalformedPath, "node id %v is not an integer", item)
			}
			result[i] = int(f)
		}
		return result, nil
	}
	return nil, errors.Wrapf(ErrMalformedPath, "expected a list, got %T", raw)
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	}
	return 0, errors.Wrapf(ErrMalformedPath, "expected a number, got %T", raw)
}

// Record is the typed serialized form of a path with its flow count, used
// for json and yaml files.
type Record struct {
	ID           int     `json:"id" yaml:"id"`
	Nodes        []int   `json:"nodes" yaml:"nodes"`
	NumFlows     float64 `json:"numFlows" yaml:"numFlows"`
	UseMBoxes    []int   `json:"useMBoxes,omitempty" yaml:"useMBoxes,omitempty"`
	PathWithMbox bool    `json:"PathWithMbox,omitempty" yaml:"PathWithMbox,omitempty"`
}

func NewRecord(p Routable, numFlows float64) Record {
	rec := Record{ID: p.ID(), Nodes: p.Nodes(), NumFlows: numFlows}
	if mp, ok := p.(*PathWithMbox); ok {
		rec.UseMBoxes = mp.UseMBoxes()
		rec.PathWithMbox = true
	}
	return rec
}

// Routable rebuilds the path the record describes
func (r Record) Routable() (Routable, error) {
	if r.PathWithMbox || len(r.UseMBoxes) > 0 {
		return NewWithMbox(r.ID, r.Nodes, r.UseMBoxes)
	}
	return New(r.ID, r.Nodes)
}

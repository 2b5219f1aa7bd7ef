package traffic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/knodir/SOL/common"
)

var ErrBadMatrix = errors.New("[traffic] - invalid traffic matrix")

// Matrix maps an ingress-egress pair to its flow volume
type Matrix map[common.IEPair]float64

// MatrixEntry is one row of a traffic matrix file
type MatrixEntry struct {
	Src    int     `json:"src" yaml:"src"`
	Dst    int     `json:"dst" yaml:"dst"`
	Volume float64 `json:"volume" yaml:"volume"`
}

type matrixFile struct {
	Name    string        `json:"name,omitempty" yaml:"name,omitempty"`
	Entries []MatrixEntry `json:"entries" yaml:"entries"`
}

// LoadMatrix reads a traffic matrix file, yaml or json by extension.
// Repeated pairs are summed; negative volumes are rejected.
func LoadMatrix(filename string) (Matrix, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read traffic matrix %s", filename)
	}
	return ParseMatrix(filename, raw)
}

// ParseMatrix decodes matrix bytes; filename only selects the format
func ParseMatrix(filename string, raw []byte) (Matrix, error) {
	var f matrixFile
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err := yaml.Unmarshal(raw, &f)
		if err != nil {
			return nil, errors.Wrapf(err, "decode traffic matrix %s", filename)
		}
	default:
		err := json.Unmarshal(raw, &f)
		if err != nil {
			return nil, errors.Wrapf(err, "decode traffic matrix %s", filename)
		}
	}

	m := make(Matrix, len(f.Entries))
	for _, e := range f.Entries {
		if e.Volume < 0 {
			return nil, errors.Wrapf(ErrBadMatrix, "negative volume %g for %d-%d", e.Volume, e.Src, e.Dst)
		}
		m[common.IEPair{Ingress: e.Src, Egress: e.Dst}] += e.Volume
	}
	return m, nil
}

// Pairs returns the matrix keys sorted by ingress then egress
func (m Matrix) Pairs() []common.IEPair {
	pairs := make([]common.IEPair, 0, len(m))
	for p := range m {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Ingress != pairs[j].Ingress {
			return pairs[i].Ingress < pairs[j].Ingress
		}
		return pairs[i].Egress < pairs[j].Egress
	})
	return pairs
}

// Total sums the volume of every pair
func (m Matrix) Total() float64 {
	total := 0.0
	for _, p := range m.Pairs() {
		total += m[p]
	}
	return total
}

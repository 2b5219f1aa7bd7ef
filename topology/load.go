package topology

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/knodir/SOL/common"
)

// NodeDesc is the serialized form of a node
type NodeDesc struct {
	ID        int                `json:"id" yaml:"id"`
	Mbox      bool               `json:"mbox,omitempty" yaml:"mbox,omitempty"`
	Services  []string           `json:"services,omitempty" yaml:"services,omitempty"`
	Resources map[string]float64 `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// LinkDesc is the serialized form of a link
type LinkDesc struct {
	Src       int                `json:"src" yaml:"src"`
	Dst       int                `json:"dst" yaml:"dst"`
	Resources map[string]float64 `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// TopoDesc is the file representation of a Topology. With Bidirectional
// set, every listed link is added in both directions with the same resources.
type TopoDesc struct {
	Name          string     `json:"name" yaml:"name"`
	Bidirectional bool       `json:"bidirectional,omitempty" yaml:"bidirectional,omitempty"`
	Nodes         []NodeDesc `json:"nodes" yaml:"nodes"`
	Links         []LinkDesc `json:"links" yaml:"links"`
}

func useYAML(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadTopoDesc deserializes a TopoDesc. If dict is empty the named file is
// read; the format follows the file extension (.yaml/.yml, otherwise json).
func ReadTopoDesc(filename string, dict []byte) (*TopoDesc, error) {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "read topology %s", filename)
		}
	}

	desc := TopoDesc{}
	if useYAML(filename) {
		err = yaml.Unmarshal(dict, &desc)
	} else {
		err = json.Unmarshal(dict, &desc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode topology %s", filename)
	}
	return &desc, nil
}

// Build creates the Topology the description holds
func (td *TopoDesc) Build() (*Topology, error) {
	t := NewTopology(td.Name)

	for _, nd := range td.Nodes {
		t.AddNode(nd.ID)
		if err := t.SetMbox(nd.ID, nd.Mbox); err != nil {
			return nil, err
		}
		if len(nd.Services) > 0 {
			if err := t.SetServiceTypes(nd.ID, nd.Services); err != nil {
				return nil, err
			}
		}
		for name, capacity := range nd.Resources {
			if err := t.SetNodeResource(nd.ID, name, capacity); err != nil {
				return nil, err
			}
		}
	}

	for _, ld := range td.Links {
		links := []common.Link{common.NewLink(ld.Src, ld.Dst)}
		if td.Bidirectional {
			links = append(links, links[0].Reverse())
		}
		for _, link := range links {
			if err := t.AddLink(link.Src, link.Dst); err != nil {
				return nil, err
			}
			for name, capacity := range ld.Resources {
				if err := t.SetLinkResource(link, name, capacity); err != nil {
					return nil, err
				}
			}
		}
	}

	log.Infof("topology %s built, node num: %d, link num: %d", t.Name, t.NodeCount(), t.LinkCount())
	return t, nil
}

// Load reads a topology file and builds it
func Load(filename string) (*Topology, error) {
	desc, err := ReadTopoDesc(filename, nil)
	if err != nil {
		return nil, err
	}
	return desc.Build()
}

// Describe returns the serializable description of the topology. Links are
// listed one per direction.
func (t *Topology) Describe() *TopoDesc {
	desc := &TopoDesc{Name: t.Name}
	for _, node := range t.Nodes() {
		desc.Nodes = append(desc.Nodes, NodeDesc{
			ID:        node,
			Mbox:      t.IsMbox(node),
			Services:  t.ServiceTypes(node),
			Resources: t.Resources(common.NodeElem(node)),
		})
	}
	for _, link := range t.Links() {
		desc.Links = append(desc.Links, LinkDesc{
			Src:       link.Src,
			Dst:       link.Dst,
			Resources: t.Resources(common.LinkElem(link)),
		})
	}
	return desc
}

// WriteToFile stores the topology description in the named file,
// serialized to json or yaml based on the extension.
func (t *Topology) WriteToFile(filename string) error {
	var bytes []byte
	var err error

	desc := t.Describe()
	if useYAML(filename) {
		bytes, err = yaml.Marshal(desc)
	} else {
		bytes, err = json.MarshalIndent(desc, "", "\t")
	}
	if err != nil {
		return errors.Wrap(err, "encode topology")
	}

	if err := os.WriteFile(filename, bytes, 0644); err != nil {
		return errors.Wrapf(err, "write topology %s", filename)
	}
	return nil
}

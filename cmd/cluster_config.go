package cmd

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/slurmsim/slurmsim/sim"
	"github.com/slurmsim/slurmsim/sim/feed"
)

// ClusterConfig is the static cluster topology, loaded from YAML:
//
//	nodes:
//	  - name: cn
//	    count: 4
//	    partition: compute
//	    cores: 16
//	    memory: 64G
//	    gpus: 0
//
// A group with count > 1 expands to numbered nodes (cn01, cn02, ...).
type ClusterConfig struct {
	Nodes []NodeGroup `yaml:"nodes"`
}

// NodeGroup describes one homogeneous set of nodes.
type NodeGroup struct {
	Name      string `yaml:"name"`
	Count     int    `yaml:"count"`
	Partition string `yaml:"partition"`
	Cores     int64  `yaml:"cores"`
	Memory    string `yaml:"memory"`
	GPUs      int64  `yaml:"gpus"`
}

// LoadClusterConfig reads and validates a topology file.
func LoadClusterConfig(path string) (*ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cluster config %s", path)
	}
	var cfg ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing cluster config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid cluster config %s", path)
	}
	return &cfg, nil
}

// Validate checks the topology, aggregating every violation.
func (c *ClusterConfig) Validate() error {
	var result *multierror.Error
	if len(c.Nodes) == 0 {
		result = multierror.Append(result, errors.New("at least one node group required"))
	}
	names := make(map[string]bool)
	for i, g := range c.Nodes {
		if g.Name == "" {
			result = multierror.Append(result, errors.Errorf("nodes[%d]: name required", i))
		}
		if names[g.Name] {
			result = multierror.Append(result, errors.Errorf("nodes[%d]: duplicate group name %q", i, g.Name))
		}
		names[g.Name] = true
		if g.Count < 0 {
			result = multierror.Append(result, errors.Errorf("nodes[%d]: count must be non-negative", i))
		}
		if g.Cores < 1 {
			result = multierror.Append(result, errors.Errorf("nodes[%d]: cores must be at least 1", i))
		}
		if g.Memory != "" {
			if _, perCPU, err := feed.ParseSize(g.Memory); err != nil {
				result = multierror.Append(result, errors.Errorf("nodes[%d]: %v", i, err))
			} else if perCPU {
				result = multierror.Append(result, errors.Errorf("nodes[%d]: per-cpu memory suffix not allowed in topology", i))
			}
		}
		if g.GPUs < 0 {
			result = multierror.Append(result, errors.Errorf("nodes[%d]: gpus must be non-negative", i))
		}
	}
	return result.ErrorOrNil()
}

// Build expands the topology into a fresh cluster. Each replica gets its
// own: node state is mutable run state.
func (c *ClusterConfig) Build() (*sim.Cluster, error) {
	var nodes []*sim.Node
	for _, g := range c.Nodes {
		var memMB int64
		if g.Memory != "" {
			memMB, _, _ = feed.ParseSize(g.Memory) // validated already
		}
		cap := sim.Resources{Cores: g.Cores, MemoryMB: memMB, GPUs: g.GPUs}

		count := g.Count
		if count == 0 {
			count = 1
		}
		for i := 1; i <= count; i++ {
			name := g.Name
			if count > 1 {
				name = fmt.Sprintf("%s%02d", g.Name, i)
			}
			nodes = append(nodes, sim.NewNode(sim.NodeID(name), g.Partition, cap))
		}
	}
	return sim.NewCluster(nodes)
}

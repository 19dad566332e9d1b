package cmd

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/slurmsim/slurmsim/sim"
)

// LoadPolicyConfig reads scheduler tunables from YAML, layered over the
// defaults. An empty path returns the defaults unchanged.
func LoadPolicyConfig(path string) (*sim.PolicyConfig, error) {
	cfg := sim.DefaultPolicyConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading policy config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing policy config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid policy config %s", path)
	}
	return cfg, nil
}

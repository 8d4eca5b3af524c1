package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/netdetective/internal/domain"
)

type seedTarget struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	IntervalSec int    `yaml:"interval_sec"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	Enabled     *bool  `yaml:"enabled"`
}

type seedFile struct {
	Targets []seedTarget `yaml:"targets"`
}

// LoadSeedTargets reads target definitions to create at boot. Omitted
// enabled defaults to true; omitted interval/timeout default to 60s/10s.
func LoadSeedTargets(path string) ([]domain.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed targets: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed targets: %w", err)
	}

	out := make([]domain.Target, 0, len(f.Targets))
	for i, s := range f.Targets {
		t := domain.Target{
			Name:        s.Name,
			URL:         s.URL,
			IntervalSec: s.IntervalSec,
			TimeoutSec:  s.TimeoutSec,
			Enabled:     s.Enabled == nil || *s.Enabled,
		}
		if t.IntervalSec == 0 {
			t.IntervalSec = 60
		}
		if t.TimeoutSec == 0 {
			t.TimeoutSec = 10
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("seed target #%d: %w", i+1, err)
		}
		out = append(out, t)
	}
	return out, nil
}

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/stats"
)

// Profile describes one workload: a tracking level, a deterministic seed,
// and a sequence of phases executed in order.
type Profile struct {
	Name   string        `yaml:"name"`
	Level  string        `yaml:"level"`
	Seed   int64         `yaml:"seed"`
	Report ReportOptions `yaml:"report"`
	Phases []Phase       `yaml:"phases"`
}

// ReportOptions controls the report printed after the workload.
type ReportOptions struct {
	// TopSites caps the call-site section at detail level.
	TopSites int `yaml:"top_sites"`
}

// Phase is one workload step. A malloc phase churns Count blocks of
// uniformly random size in [MinSize, MaxSize], keeping at most Hold of them
// live; an arena phase bump-allocates Count pieces into one arena and
// releases it. Workers splits the phase across goroutines.
type Phase struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Arena    bool   `yaml:"arena"`
	Count    int    `yaml:"count"`
	MinSize  uint64 `yaml:"min_size"`
	MaxSize  uint64 `yaml:"max_size"`
	Hold     int    `yaml:"hold"`
	Workers  int    `yaml:"workers"`
}

// resolvedProfile is a validated profile with enums parsed.
type resolvedProfile struct {
	Profile
	level  track.Level
	phases []resolvedPhase
}

type resolvedPhase struct {
	Phase
	cat stats.Category
}

// defaultProfile is the workload used when no profile file is given.
func defaultProfile() Profile {
	return Profile{
		Name:   "default-churn",
		Level:  "detail",
		Seed:   1,
		Report: ReportOptions{TopSites: 10},
		Phases: []Phase{
			{Name: "heap-churn", Category: "Heap", Count: 20000, MinSize: 32, MaxSize: 4096, Hold: 512, Workers: 4},
			{Name: "code-resident", Category: "Code", Count: 200, MinSize: 1 << 10, MaxSize: 64 << 10, Hold: 200},
			{Name: "compiler-arena", Category: "Compiler", Arena: true, Count: 1000, MinSize: 16, MaxSize: 256},
		},
	}
}

// loadProfile reads and validates a YAML profile file.
func loadProfile(path string) (Profile, error) {
	var p Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}

// resolve validates the profile and parses its level and category names.
func resolve(p Profile) (resolvedProfile, error) {
	r := resolvedProfile{Profile: p}

	level, err := track.ParseLevel(p.Level)
	if err != nil {
		return r, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if level == track.LevelOff {
		return r, fmt.Errorf("profile %q: tracking level off records nothing to report", p.Name)
	}
	r.level = level

	if len(p.Phases) == 0 {
		return r, fmt.Errorf("profile %q: no phases", p.Name)
	}
	for _, phase := range p.Phases {
		cat, err := stats.ParseCategory(phase.Category)
		if err != nil {
			return r, fmt.Errorf("phase %q: %w", phase.Name, err)
		}
		if phase.Count <= 0 {
			return r, fmt.Errorf("phase %q: count must be positive", phase.Name)
		}
		if phase.MinSize > phase.MaxSize {
			return r, fmt.Errorf("phase %q: min_size %d above max_size %d",
				phase.Name, phase.MinSize, phase.MaxSize)
		}
		if phase.Hold < 0 || phase.Workers < 0 {
			return r, fmt.Errorf("phase %q: hold and workers must not be negative", phase.Name)
		}
		if phase.Workers == 0 {
			phase.Workers = 1
		}
		r.phases = append(r.phases, resolvedPhase{Phase: phase, cat: cat})
	}
	return r, nil
}

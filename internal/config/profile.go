package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// Profile is a named set of collation tolerances kept in a YAML file so a
// run can be reproduced with the exact thresholds it used:
//
//	name: moschetti-2017
//	magnitude: 0.2
//	time: 30s
//	distance_km: 5
//	near_miss: 2m
//
// Omitted keys keep the environment/default value.
type Profile struct {
	Name       string         `yaml:"name"`
	Magnitude  *float64       `yaml:"magnitude"`
	Time       *time.Duration `yaml:"time"`
	DistanceKm *float64       `yaml:"distance_km"`
	NearMiss   *time.Duration `yaml:"near_miss"`
}

// LoadProfile reads a YAML collation profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read COLLATE_PROFILE: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse COLLATE_PROFILE %s: %w", path, err)
	}
	return &p, nil
}

// Apply overlays the profile on base.
func (p *Profile) Apply(base domain.Tolerances) domain.Tolerances {
	if p.Magnitude != nil {
		base.Magnitude = *p.Magnitude
	}
	if p.Time != nil {
		base.Time = *p.Time
	}
	if p.DistanceKm != nil {
		base.DistanceKm = *p.DistanceKm
	}
	if p.NearMiss != nil {
		base.NearMiss = *p.NearMiss
	}
	return base
}

package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	MaxSteps int `yaml:"max_steps" json:"max_steps"`
	Width    int `yaml:"width" json:"width"`
	Height   int `yaml:"height" json:"height"`

	Groups  []GroupSpec `yaml:"groups" json:"groups"`
	Actions ActionsSpec `yaml:"actions" json:"actions"`
}

// GroupSpec configures every agent of one group. Item maps are keyed by
// item name from items.json.
type GroupSpec struct {
	ID                   int     `yaml:"id" json:"id"`
	Name                 string  `yaml:"name" json:"name"`
	TypeName             string  `yaml:"type_name" json:"type_name"`
	Count                int     `yaml:"count" json:"count"`
	FreezeDuration       int     `yaml:"freeze_duration" json:"freeze_duration"`
	ActionFailurePenalty float64 `yaml:"action_failure_penalty" json:"action_failure_penalty"`
	GroupRewardPct       float64 `yaml:"group_reward_pct" json:"group_reward_pct"`

	// DefaultResourceLimit applies to items missing from ResourceLimits.
	DefaultResourceLimit int                `yaml:"default_resource_limit" json:"default_resource_limit"`
	ResourceLimits       map[string]int     `yaml:"resource_limits" json:"resource_limits,omitempty"`
	ResourceRewards      map[string]float64 `yaml:"resource_rewards" json:"resource_rewards,omitempty"`
	ResourceRewardMax    map[string]float64 `yaml:"resource_reward_max" json:"resource_reward_max,omitempty"`
	InitialInventory     map[string]int     `yaml:"initial_inventory" json:"initial_inventory,omitempty"`
}

type ActionsSpec struct {
	Noop          ActionSpec `yaml:"noop" json:"noop"`
	Move          ActionSpec `yaml:"move" json:"move"`
	Rotate        ActionSpec `yaml:"rotate" json:"rotate"`
	Swap          ActionSpec `yaml:"swap" json:"swap"`
	Attack        AttackSpec `yaml:"attack" json:"attack"`
	AttackNearest AttackSpec `yaml:"attack_nearest" json:"attack_nearest"`
}

type ActionSpec struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type AttackSpec struct {
	Enabled          bool           `yaml:"enabled" json:"enabled"`
	AttackResources  map[string]int `yaml:"attack_resources" json:"attack_resources,omitempty"`
	DefenseResources map[string]int `yaml:"defense_resources" json:"defense_resources,omitempty"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

// Parse validates raw YAML against the tuning schema, then decodes it.
func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	if err := ValidateDocument(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	t := Tuning{
		MaxSteps: 1000,
		Width:    25,
		Height:   25,
		Groups: []GroupSpec{
			{
				ID:                   0,
				Name:                 "red",
				Count:                4,
				FreezeDuration:       10,
				DefaultResourceLimit: 50,
				ResourceRewards:      map[string]float64{"heart": 1},
				ResourceRewardMax:    map[string]float64{"heart": 100},
				InitialInventory:     map[string]int{"laser": 3, "armor": 1, "heart": 1},
			},
			{
				ID:                   1,
				Name:                 "blue",
				Count:                4,
				FreezeDuration:       10,
				DefaultResourceLimit: 50,
				ResourceRewards:      map[string]float64{"heart": 1},
				ResourceRewardMax:    map[string]float64{"heart": 100},
				InitialInventory:     map[string]int{"laser": 3, "armor": 1, "heart": 1},
			},
		},
		Actions: ActionsSpec{
			Noop:   ActionSpec{Enabled: true},
			Move:   ActionSpec{Enabled: true},
			Rotate: ActionSpec{Enabled: true},
			Swap:   ActionSpec{Enabled: true},
			Attack: AttackSpec{
				Enabled:          true,
				AttackResources:  map[string]int{"laser": 1},
				DefenseResources: map[string]int{"armor": 1},
			},
		},
	}
	t.Normalize()
	return t
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.MaxSteps <= 0 {
		t.MaxSteps = 1000
	}
	if t.Width <= 0 {
		t.Width = 25
	}
	if t.Height <= 0 {
		t.Height = 25
	}
	for i := range t.Groups {
		g := &t.Groups[i]
		if g.TypeName == "" {
			g.TypeName = "agent"
		}
		if g.FreezeDuration < 0 {
			g.FreezeDuration = 0
		}
	}
}

func (t Tuning) Validate() error {
	if len(t.Groups) == 0 {
		return fmt.Errorf("no groups")
	}
	names := map[string]bool{}
	ids := map[int]bool{}
	agents := 0
	for _, g := range t.Groups {
		if g.Name == "" {
			return fmt.Errorf("group %d: empty name", g.ID)
		}
		if names[g.Name] {
			return fmt.Errorf("duplicate group name %q", g.Name)
		}
		if ids[g.ID] {
			return fmt.Errorf("duplicate group id %d", g.ID)
		}
		names[g.Name] = true
		ids[g.ID] = true
		if g.ID < 0 || g.ID > 255 {
			return fmt.Errorf("group %q: id %d out of range", g.Name, g.ID)
		}
		if g.Count < 0 {
			return fmt.Errorf("group %q: negative count", g.Name)
		}
		if g.GroupRewardPct < 0 || g.GroupRewardPct > 1 {
			return fmt.Errorf("group %q: group_reward_pct %v outside [0,1]", g.Name, g.GroupRewardPct)
		}
		if g.DefaultResourceLimit < 0 || g.DefaultResourceLimit > 255 {
			return fmt.Errorf("group %q: default_resource_limit out of range", g.Name)
		}
		for item, lim := range g.ResourceLimits {
			if lim < 0 || lim > 255 {
				return fmt.Errorf("group %q: resource_limits[%s]=%d out of range", g.Name, item, lim)
			}
		}
		agents += g.Count
	}
	if agents > t.Width*t.Height {
		return fmt.Errorf("%d agents do not fit a %dx%d grid", agents, t.Width, t.Height)
	}
	return nil
}

// Agents is the total agent count over all groups.
func (t Tuning) Agents() int {
	n := 0
	for _, g := range t.Groups {
		n += g.Count
	}
	return n
}

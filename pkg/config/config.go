// Package config loads and serves the system's operational configuration:
// working hours, NLU strategy selection, and per-agent scheduling policy.
// Structure follows the teacher's registry-per-concern idiom (one small
// typed registry per configuration surface, loaded from YAML, never a
// single God struct).
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// NLUStrategy selects which classifier implementation is preferred.
type NLUStrategy string

const (
	NLURuleBased   NLUStrategy = "rule"
	NLUModelBacked NLUStrategy = "model"
)

// WorkingHours is the window inside which scheduling may propose slots.
type WorkingHours struct {
	Weekdays     []time.Weekday `yaml:"-"`
	WeekdayNames []string       `yaml:"weekdays"`
	StartHour    int            `yaml:"start_hour"`
	EndHour      int            `yaml:"end_hour"`
	Location     string         `yaml:"timezone"`
}

// Defaults holds system-wide tunables loaded once at startup.
type Defaults struct {
	MaxUploadSizeBytes   int64         `yaml:"max_upload_size_bytes"`
	AllowedMimeTypes     []string      `yaml:"allowed_mime_types"`
	UploadGrantTTL       time.Duration `yaml:"upload_grant_ttl"`
	NLUStrategy          NLUStrategy   `yaml:"nlu_strategy"`
	NLUDeadline          time.Duration `yaml:"nlu_deadline"`
	AgentDeadline        time.Duration `yaml:"agent_deadline"`
	AgentMaxOutputTokens int           `yaml:"agent_max_output_tokens"`
	ChannelSendDeadline  time.Duration `yaml:"channel_send_deadline"`
	CalendarDeadline     time.Duration `yaml:"calendar_deadline"`
	ContextWindowSize    int           `yaml:"context_window_size"` // K messages of history fed to an agent
	LowConfidenceCutoff  float64       `yaml:"low_confidence_cutoff"`
	SlotDuration         time.Duration `yaml:"slot_duration"`
	SlotBuffer           time.Duration `yaml:"slot_buffer"`
	SlotLookaheadDays    int           `yaml:"slot_lookahead_days"`
	WorkingHours         WorkingHours  `yaml:"working_hours"`
	CommandPrefix        string        `yaml:"command_prefix"`
}

func defaultDefaults() Defaults {
	return Defaults{
		MaxUploadSizeBytes:   25 << 20,
		AllowedMimeTypes:     []string{"image/png", "image/jpeg", "image/webp", "audio/ogg", "audio/mpeg", "application/pdf"},
		UploadGrantTTL:       10 * time.Minute,
		NLUStrategy:          NLUModelBacked,
		NLUDeadline:          3 * time.Second,
		AgentDeadline:        20 * time.Second,
		AgentMaxOutputTokens: 1024,
		ChannelSendDeadline:  8 * time.Second,
		CalendarDeadline:     8 * time.Second,
		ContextWindowSize:    20,
		LowConfidenceCutoff:  0.5,
		SlotDuration:         60 * time.Minute,
		SlotBuffer:           10 * time.Minute,
		SlotLookaheadDays:    10,
		WorkingHours: WorkingHours{
			WeekdayNames: []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
			StartHour:    9,
			EndHour:      18,
			Location:     "UTC",
		},
		CommandPrefix: "@",
	}
}

// SchedulingMode resolves the Open Question on auto_commit scope: the spec
// treats it as a per-(tenant, agent) setting. We key it "tenant:agentKey"
// with a "*:agentKey" fallback and finally a global default, since this
// deployment's tenancy model is out of scope (spec §1 Non-goals) but the
// setting itself is still required by §4.7.
type SchedulingMode string

const (
	ModeAutoCommit       SchedulingMode = "auto_commit"
	ModeRequireOperator  SchedulingMode = "require_operator_ok"
)

// SchedulingPolicy is the merged per-concern registry for scheduling behavior.
type SchedulingPolicy struct {
	mu      sync.RWMutex
	byKey   map[string]SchedulingMode
	fallback SchedulingMode
}

// NewSchedulingPolicy builds a policy from tenant:agentKey -> mode overrides.
func NewSchedulingPolicy(overrides map[string]SchedulingMode, fallback SchedulingMode) *SchedulingPolicy {
	copied := make(map[string]SchedulingMode, len(overrides))
	for k, v := range overrides {
		copied[k] = v
	}
	if fallback == "" {
		fallback = ModeRequireOperator
	}
	return &SchedulingPolicy{byKey: copied, fallback: fallback}
}

// ModeFor resolves tenant+agent -> tenant:agent, then *:agent, then the default.
func (p *SchedulingPolicy) ModeFor(tenantID, agentKey string) SchedulingMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if m, ok := p.byKey[tenantID+":"+agentKey]; ok {
		return m
	}
	if m, ok := p.byKey["*:"+agentKey]; ok {
		return m
	}
	return p.fallback
}

// Set installs (or updates) an override, callable at runtime as tenants
// change their scheduling policy.
func (p *SchedulingPolicy) Set(tenantID, agentKey string, mode SchedulingMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byKey[tenantID+":"+agentKey] = mode
}

// Config is the umbrella object returned by Load and threaded explicitly
// through the application, per the REDESIGN note in spec §9: no process-wide
// singleton, one constructed context passed down.
type Config struct {
	Defaults   Defaults
	Scheduling *SchedulingPolicy
}

// Load reads defaults.yaml (if present) from dir, falling back to built-in
// defaults. No environment overrides are applied. The teacher's multi-file
// agent/chain/MCP registries are not reproduced.
func Load(dir string) (*Config, error) {
	d := defaultDefaults()

	path := dir + "/defaults.yaml"
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	d.WorkingHours.Weekdays = parseWeekdays(d.WorkingHours.WeekdayNames)

	return &Config{
		Defaults:   d,
		Scheduling: NewSchedulingPolicy(nil, ModeRequireOperator),
	}, nil
}

func parseWeekdays(names []string) []time.Weekday {
	lookup := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		if wd, ok := lookup[n]; ok {
			out = append(out, wd)
		}
	}
	return out
}

// Package timing maps urgency labels to outreach delays and channel
// preferences to channel rotations.
package timing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Channels an attempt can be scheduled on.
const (
	ChannelEmail    = "email"
	ChannelWhatsapp = "whatsapp"
	ChannelCall     = "call"
	ChannelSMS      = "sms"
)

// DefaultUrgency is the tier used for unknown urgency labels.
const DefaultUrgency = "Medium"

var knownChannels = map[string]struct{}{
	ChannelEmail:    {},
	ChannelWhatsapp: {},
	ChannelCall:     {},
	ChannelSMS:      {},
}

// Tier is the delay plan for one urgency label, in days.
type Tier struct {
	InitialDelay float64   `yaml:"initial_delay" json:"initialDelay"`
	Intervals    []float64 `yaml:"intervals" json:"intervals"`
}

// Delays returns the initial delay followed by the intervals.
func (t Tier) Delays() []float64 {
	out := make([]float64, 0, len(t.Intervals)+1)
	out = append(out, t.InitialDelay)
	return append(out, t.Intervals...)
}

// Policy holds the urgency tiers and channel rotations.
type Policy struct {
	DefaultUrgency string              `yaml:"default_urgency" json:"defaultUrgency"`
	Tiers          map[string]Tier     `yaml:"urgency" json:"urgency"`
	Rotations      map[string][]string `yaml:"channels" json:"channels"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		DefaultUrgency: DefaultUrgency,
		Tiers: map[string]Tier{
			"Low":    {InitialDelay: 3, Intervals: []float64{7, 14, 30}},
			"Medium": {InitialDelay: 1, Intervals: []float64{3, 7, 14}},
			"High":   {InitialDelay: 0.25, Intervals: []float64{1, 2, 4, 7}},
			"Urgent": {InitialDelay: 0, Intervals: []float64{0.5, 1, 2, 3}},
		},
		Rotations: map[string][]string{
			"Email":    {ChannelEmail, ChannelEmail, ChannelEmail, ChannelCall},
			"Whatsapp": {ChannelWhatsapp, ChannelWhatsapp, ChannelEmail},
			"Call":     {ChannelCall, ChannelEmail, ChannelCall},
			"Hybrid":   {ChannelEmail, ChannelWhatsapp, ChannelCall, ChannelEmail},
		},
	}
}

// Delays returns the delay list for urgency. Labels match case-insensitively
// and unknown labels use the default tier.
func (p *Policy) Delays(urgency string) []float64 {
	if tier, ok := lookup(p.Tiers, urgency); ok {
		return tier.Delays()
	}
	if tier, ok := lookup(p.Tiers, p.defaultUrgency()); ok {
		return tier.Delays()
	}
	return nil
}

// Rotation returns the channel rotation for a preference, or [email] if unknown.
func (p *Policy) Rotation(preference string) []string {
	if rot, ok := lookup(p.Rotations, preference); ok && len(rot) > 0 {
		return append([]string(nil), rot...)
	}
	return []string{ChannelEmail}
}

// HasUrgency reports whether urgency names a configured tier.
func (p *Policy) HasUrgency(urgency string) bool {
	_, ok := lookup(p.Tiers, urgency)
	return ok
}

// Urgencies lists the configured urgency labels in sorted order.
func (p *Policy) Urgencies() []string {
	out := make([]string, 0, len(p.Tiers))
	for k := range p.Tiers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate rejects negative delays, empty rotations and unknown channels.
func (p *Policy) Validate() error {
	if p == nil {
		return errors.New("policy is nil")
	}
	if len(p.Tiers) == 0 {
		return errors.New("policy has no urgency tiers")
	}
	for label, tier := range p.Tiers {
		for _, d := range tier.Delays() {
			if d < 0 {
				return fmt.Errorf("urgency %q: negative delay %v", label, d)
			}
		}
	}
	if _, ok := lookup(p.Tiers, p.defaultUrgency()); !ok {
		return fmt.Errorf("default urgency %q is not a configured tier", p.defaultUrgency())
	}
	for pref, rot := range p.Rotations {
		if len(rot) == 0 {
			return fmt.Errorf("channel preference %q: empty rotation", pref)
		}
		for _, ch := range rot {
			if _, ok := knownChannels[ch]; !ok {
				return fmt.Errorf("channel preference %q: unknown channel %q", pref, ch)
			}
		}
	}
	return nil
}

func (p *Policy) defaultUrgency() string {
	if strings.TrimSpace(p.DefaultUrgency) == "" {
		return DefaultUrgency
	}
	return p.DefaultUrgency
}

func lookup[V any](m map[string]V, key string) (V, bool) {
	key = strings.TrimSpace(key)
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Store holds the active policy and allows it to be swapped at runtime.
type Store struct {
	current atomic.Pointer[Policy]
}

// NewStore returns a Store seeded with p, or the default policy when p is nil.
func NewStore(p *Policy) *Store {
	if p == nil {
		p = Default()
	}
	s := &Store{}
	s.current.Store(p)
	return s
}

// Current returns the active policy.
func (s *Store) Current() *Policy {
	return s.current.Load()
}

// Replace swaps in p after validating it.
func (s *Store) Replace(p *Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.current.Store(p)
	return nil
}

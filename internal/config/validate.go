package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var groupIDRegex = regexp.MustCompile(`^\d{5,12}$`)

// Validate checks the adapter selection and every group policy.
func (c *Config) Validate() error {
	switch c.Bot.Adapter {
	case AdapterTelegram, AdapterOneBot:
	default:
		return fmt.Errorf("unknown bot adapter %q", c.Bot.Adapter)
	}

	if c.Moderation.DecayWindow <= 0 {
		return errors.New("moderation.decay_window must be positive")
	}

	seen := make(map[string]bool, len(c.Moderation.Groups))
	for i, g := range c.Moderation.Groups {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("moderation.groups[%d]: %w", i, err)
		}
		if seen[g.GroupID] {
			return fmt.Errorf("moderation.groups[%d]: duplicate group_id %s", i, g.GroupID)
		}
		seen[g.GroupID] = true
	}
	return nil
}

// Validate checks a single group policy. Pattern syntax is checked when the
// filter compiles the policy.
func (g GroupConfig) Validate() error {
	if !groupIDRegex.MatchString(g.GroupID) {
		return fmt.Errorf("group_id %q must be 5 to 12 digits", g.GroupID)
	}
	if threshold := g.Mute.ViolationThreshold(); threshold < 1 {
		return fmt.Errorf("mute.threshold must be at least 1, got %d", threshold)
	}
	if g.Mute.Duration < time.Second {
		return fmt.Errorf("mute.duration must be at least 1s, got %v", g.Mute.Duration)
	}
	for i, r := range g.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("rules[%d]: empty pattern", i)
		}
	}
	return nil
}

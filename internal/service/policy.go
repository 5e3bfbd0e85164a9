package service

import (
	"fmt"

	"chat-guard/internal/config"
	"chat-guard/internal/filter"
	"chat-guard/internal/logger"
	"chat-guard/internal/models"
)

// Policy is a group policy together with its compiled rules.
type Policy struct {
	*models.GroupPolicy
	Engine *filter.Engine
}

// PolicyRegistry looks up the policy of a group. It is read-only after
// construction.
type PolicyRegistry struct {
	policies map[string]*Policy
	order    []string
}

// NewPolicyRegistry compiles every policy. A duplicate group id, an
// unsupported language or a pattern that does not compile is an error.
func NewPolicyRegistry(policies []*models.GroupPolicy) (*PolicyRegistry, error) {
	r := &PolicyRegistry{policies: make(map[string]*Policy, len(policies))}
	for _, gp := range policies {
		if _, dup := r.policies[gp.GroupID]; dup {
			return nil, fmt.Errorf("duplicate policy for group %s", gp.GroupID)
		}
		if !models.IsSupportedLanguage(gp.Language) {
			return nil, fmt.Errorf("group %s: unsupported language %q", gp.GroupID, gp.Language)
		}
		engine, err := filter.Compile(gp)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", gp.GroupID, err)
		}
		r.policies[gp.GroupID] = &Policy{GroupPolicy: gp, Engine: engine}
		r.order = append(r.order, gp.GroupID)
		logger.Infof("Loaded policy for group %s (%s): %d active rules, mute=%v",
			gp.GroupID, models.GetLanguageName(gp.Language), engine.Len(), gp.Mute.Enabled)
	}
	return r, nil
}

// Get returns the policy of a group.
func (r *PolicyRegistry) Get(groupID string) (*Policy, bool) {
	p, ok := r.policies[groupID]
	return p, ok
}

// GroupIDs returns the configured group ids in configuration order.
func (r *PolicyRegistry) GroupIDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of policies.
func (r *PolicyRegistry) Len() int {
	return len(r.policies)
}

// PoliciesFromConfig converts the configured groups into policies.
func PoliciesFromConfig(cfg *config.Config) []*models.GroupPolicy {
	policies := make([]*models.GroupPolicy, 0, len(cfg.Moderation.Groups))
	for _, g := range cfg.Moderation.Groups {
		rules := make([]models.PatternRule, 0, len(g.Rules))
		for _, rc := range g.Rules {
			rules = append(rules, models.PatternRule{
				Pattern:      rc.Pattern,
				Enabled:      rc.IsEnabled(),
				TriggersMute: rc.Mute,
				Recall:       rc.Recall,
				Replace:      rc.Replace,
				ReplaceWord:  rc.ReplaceWord,
			})
		}
		policies = append(policies, &models.GroupPolicy{
			GroupID:      g.GroupID,
			Enabled:      g.Enabled,
			Language:     g.Language,
			ExemptAdmins: g.ExemptAdmins,
			Mute: models.MuteConfig{
				Enabled:   g.Mute.Enabled,
				Threshold: g.Mute.ViolationThreshold(),
				Duration:  g.Mute.Duration,
			},
			Rules:            rules,
			CustomMessage:    g.CustomMessage,
			AlertText:        g.AlertText,
			CorrectionPrefix: g.CorrectionPrefix,
		})
	}
	return policies
}

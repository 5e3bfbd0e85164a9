package models

import "time"

// GroupPolicy is the moderation configuration of one group. It is built
// once from configuration and never mutated afterwards.
type GroupPolicy struct {
	GroupID          string
	Enabled          bool
	Language         string
	ExemptAdmins     bool
	Mute             MuteConfig
	Rules            []PatternRule
	CustomMessage    string
	AlertText        string
	CorrectionPrefix string
}

// MuteConfig controls escalation to a timed mute.
type MuteConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
}

// PatternRule is one forbidden-content rule. Rules are evaluated in the
// order they appear in GroupPolicy.Rules.
type PatternRule struct {
	Pattern      string
	Enabled      bool
	TriggersMute bool
	Recall       bool
	Replace      bool
	ReplaceWord  string
}

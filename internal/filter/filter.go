// Package filter evaluates normalized message text against a group's
// pattern rules.
package filter

import (
	"fmt"
	"regexp"

	"chat-guard/internal/markup"
	"chat-guard/internal/models"
)

// Result is the outcome of running a message through a group's rules.
type Result struct {
	// Text is the message after all replacements.
	Text string
	// Recall is set when any matching rule asks for the original to be deleted.
	Recall bool
	// Mute is set when any matching rule triggers mute escalation.
	Mute bool
	// Replaced is set when a replacing rule matched and rewrote the text.
	Replaced bool
	// Matched lists the patterns that matched, in rule order.
	Matched []string
}

// Hit reports whether any rule matched.
func (r Result) Hit() bool {
	return len(r.Matched) > 0
}

type compiledRule struct {
	rule models.PatternRule
	re   *regexp.Regexp
}

// Engine holds the compiled rules of one policy. It is immutable and safe
// for concurrent use.
type Engine struct {
	rules []compiledRule
}

// Compile compiles the enabled rules of policy. Patterns are matched case
// insensitively and in multi-line mode.
func Compile(policy *models.GroupPolicy) (*Engine, error) {
	e := &Engine{rules: make([]compiledRule, 0, len(policy.Rules))}
	for i, rule := range policy.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile("(?im)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, rule.Pattern, err)
		}
		e.rules = append(e.rules, compiledRule{rule: rule, re: re})
	}
	return e, nil
}

// Len returns the number of active rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs text through the rules in order. Each rule sees the output of
// the previous one. Occurrences inside markup tokens are never matched.
func (e *Engine) Apply(text string) Result {
	res := Result{Text: text}
	for _, cr := range e.rules {
		spans := markup.Split(res.Text)
		if !matchLiteral(cr.re, spans) {
			continue
		}

		res.Matched = append(res.Matched, cr.rule.Pattern)
		if cr.rule.Replace {
			res.Text = replaceLiteral(cr.re, spans, cr.rule.ReplaceWord)
			res.Replaced = true
		}
		res.Recall = res.Recall || cr.rule.Recall
		res.Mute = res.Mute || cr.rule.TriggersMute
	}
	return res
}

func matchLiteral(re *regexp.Regexp, spans []markup.Span) bool {
	for _, s := range spans {
		if !s.Token && re.MatchString(s.Text) {
			return true
		}
	}
	return false
}

func replaceLiteral(re *regexp.Regexp, spans []markup.Span, repl string) string {
	out := make([]markup.Span, len(spans))
	for i, s := range spans {
		if !s.Token {
			s.Text = re.ReplaceAllLiteralString(s.Text, repl)
		}
		out[i] = s
	}
	return markup.Join(out)
}

// Package masking redacts personally identifiable information before a
// HandoverTicket's context snapshot (spec §4.6) is written to logs,
// adapted from the teacher's pkg/masking regex-pattern engine — this
// deployment has no MCP tool results or alert payloads to mask, so the
// code-based masker/server-registry layer is dropped (see DESIGN.md) and
// only the compiled-pattern sweep survives.
package masking

import (
	"log/slog"
	"regexp"
)

// Pattern is a named regex replacement rule.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns mirrors the shape of the teacher's config.GetBuiltinConfig
// ().MaskingPatterns, but fixed at compile time since this deployment has no
// per-tenant masking configuration surface to drive it from.
func builtinPatterns() []Pattern {
	return []Pattern{
		{Name: "email", Regex: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), Replacement: "[REDACTED_EMAIL]"},
		{Name: "phone", Regex: regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`), Replacement: "[REDACTED_PHONE]"},
		{Name: "national_id", Regex: regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`), Replacement: "[REDACTED_ID]"},
		{Name: "credit_card", Regex: regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`), Replacement: "[REDACTED_CARD]"},
	}
}

// Service applies the compiled pattern sweep to free-form text. Created
// once at startup (singleton); safe for concurrent use, stateless aside
// from the compiled patterns themselves.
type Service struct {
	patterns []Pattern
}

// NewService builds a Service over the built-in pattern set and logs how
// many patterns it holds. The patterns are compiled with regexp.MustCompile,
// so an invalid pattern panics instead of being skipped.
func NewService() *Service {
	s := &Service{patterns: builtinPatterns()}
	slog.Info("masking service initialized", "patterns", len(s.patterns))
	return s
}

// Mask applies every pattern to text in sequence. Fail-open: masking never
// blocks a ticket from being logged, it only best-effort redacts it, since
// an operator losing visibility into an active handover is worse than a
// rare unredacted field (see DESIGN.md for the fail-open/fail-closed split
// inherited from the teacher's MaskToolResult vs MaskAlertData distinction).
func (s *Service) Mask(text string) string {
	if text == "" {
		return text
	}
	masked := text
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskFields returns a copy of fields with every value passed through Mask,
// used to redact a ContextSnapshot's free-text fields before they reach slog.
func (s *Service) MaskFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = s.Mask(v)
	}
	return out
}

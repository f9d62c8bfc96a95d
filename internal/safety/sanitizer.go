// Package safety implements the three-stage pipeline that screens
// inbound content, tool arguments, and outbound text: the input
// sanitizer, the tool-argument validator, and the output leak
// detector. Grounded on the teacher's internal/security (severity
// shape) and internal/net/ssrf (private-address checks), generalized
// to the spec's closed pattern sets.
package safety

import (
	"regexp"
	"strings"
)

// SanitizeResult is the outcome of running the input sanitizer. It
// never mutates the caller's original string; Content is the
// sanitized copy.
type SanitizeResult struct {
	Content string
	Flags   []string
	Warning string
}

// zeroWidthCodepoints are stripped unconditionally before pattern
// matching: they are used to hide injection text from casual review
// without affecting how a human reads the message.
var zeroWidthCodepoints = []rune{
	'​', // zero width space
	'‌', // zero width non-joiner
	'‍', // zero width joiner
	'⁠', // word joiner
	'﻿', // zero width no-break space / BOM
}

type injectionPattern struct {
	name string
	re   *regexp.Regexp
}

var injectionPatterns = []injectionPattern{
	{"ignore_instructions", regexp.MustCompile(`(?i)ignore (previous|above|all) instructions`)},
	{"role_override", regexp.MustCompile(`(?i)you are now `)},
	{"system_prefix", regexp.MustCompile(`(?i)system:`)},
	{"inst_tag", regexp.MustCompile(`(?i)\[INST\]`)},
	{"system_tag", regexp.MustCompile(`(?i)<\|system\|>`)},
	{"important_override", regexp.MustCompile(`(?i)IMPORTANT: override`)},
	{"disregard_prior", regexp.MustCompile(`(?i)disregard (all|any) (previous|prior)`)},
	{"new_instructions", regexp.MustCompile(`(?i)new instructions:`)},
}

// Sanitizer strips zero-width codepoints and flags instruction-injection
// patterns in inbound content.
type Sanitizer struct{}

// NewSanitizer creates an input sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize strips the closed set of zero-width code points and matches
// the result against the closed set of injection patterns. The
// original input is never mutated.
func (s *Sanitizer) Sanitize(content string) SanitizeResult {
	stripped := stripZeroWidth(content)

	var flags []string
	for _, p := range injectionPatterns {
		if p.re.MatchString(stripped) {
			flags = append(flags, p.name)
		}
	}

	result := SanitizeResult{Content: stripped, Flags: flags}
	if len(flags) > 0 {
		result.Warning = "potential instruction injection detected: " + strings.Join(flags, ", ")
	}
	return result
}

func stripZeroWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		skip := false
		for _, z := range zeroWidthCodepoints {
			if r == z {
				skip = true
				break
			}
		}
		if !skip {
			b.WriteRune(r)
		}
	}
	return b.String()
}

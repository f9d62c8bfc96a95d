package safety

import (
	"errors"
	"regexp"
)

// LeakAction is what the detector does with a matched pattern.
type LeakAction string

const (
	LeakRedact LeakAction = "redact"
	LeakWarn   LeakAction = "warn"
	LeakBlock  LeakAction = "block"
)

type leakPattern struct {
	name   string
	re     *regexp.Regexp
	action LeakAction
}

var leakPatterns = []leakPattern{
	{"openai_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`), LeakRedact},
	{"anthropic_key", regexp.MustCompile(`sk-ant-[A-Za-z0-9-]{20,}`), LeakRedact},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`), LeakRedact},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), LeakRedact},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), LeakWarn},
	{"pem_private_key", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |)PRIVATE KEY-----`), LeakBlock},
	{"connection_string_with_creds", regexp.MustCompile(`(?i)[a-z][a-z0-9+.-]*://[^\s:/]+:[^\s@/]+@`), LeakWarn},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`), LeakWarn},
}

// LeakFinding records one matched pattern in output text.
type LeakFinding struct {
	Name   string
	Action LeakAction
}

// LeakResult is the outcome of scanning a chunk of outbound text.
type LeakResult struct {
	Content  string // redacted copy; equals the input unless a redact action fired
	Findings []LeakFinding
	Blocked  bool // true iff a block-action pattern matched
}

// ErrDisableNotConfirmed is returned by Detector.Disable when called
// without a prior ConfirmDisable.
var ErrDisableNotConfirmed = errors.New("safety: leak detector disable requires confirmDisable() first")

// Detector scans outbound text for credential-shaped patterns. It can
// only be disabled after an explicit confirmation step, mirroring the
// teacher's remediation-confirmation pattern for destructive actions.
type Detector struct {
	disabled  bool
	confirmed bool
}

// NewDetector creates an enabled leak detector.
func NewDetector() *Detector {
	return &Detector{}
}

// ConfirmDisable acknowledges the intent to disable the detector. It
// must be called immediately before Disable; the confirmation does not
// persist across an intervening Scan or Disable call.
func (d *Detector) ConfirmDisable() {
	d.confirmed = true
}

// Disable turns off scanning. It fails with ErrDisableNotConfirmed
// unless ConfirmDisable was just called.
func (d *Detector) Disable() error {
	if !d.confirmed {
		return ErrDisableNotConfirmed
	}
	d.disabled = true
	d.confirmed = false
	return nil
}

// Enable turns scanning back on.
func (d *Detector) Enable() {
	d.disabled = false
	d.confirmed = false
}

// Scan applies every pattern to text. Redact actions replace their
// match with "[REDACTED:<name>]" in the returned Content. Block actions
// set Blocked but still return the (partially redacted) Content so
// callers can log what would have been sent.
func (d *Detector) Scan(text string) LeakResult {
	if d.disabled {
		return LeakResult{Content: text}
	}

	content := text
	var findings []LeakFinding
	blocked := false

	for _, p := range leakPatterns {
		if !p.re.MatchString(content) {
			continue
		}
		findings = append(findings, LeakFinding{Name: p.name, Action: p.action})
		switch p.action {
		case LeakRedact:
			content = p.re.ReplaceAllString(content, "[REDACTED:"+p.name+"]")
		case LeakBlock:
			blocked = true
		case LeakWarn:
			// no mutation; caller decides whether to surface the warning
		}
	}

	return LeakResult{Content: content, Findings: findings, Blocked: blocked}
}

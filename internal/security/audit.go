// Package security audits a Kestrel installation's on-disk state for
// common misconfigurations: loose file permissions on the config file
// and state directory, and runtime policy settings (autonomy bounds,
// safety vault prefix, logging verbosity) that widen the agent's
// blast radius beyond what an operator likely intended.
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-agent/kestrel/internal/config"
)

// AuditSeverity classifies how urgently a finding should be addressed.
type AuditSeverity string

const (
	SeverityCritical AuditSeverity = "critical"
	SeverityWarn     AuditSeverity = "warn"
	SeverityInfo     AuditSeverity = "info"
)

// AuditFinding is a single security observation.
type AuditFinding struct {
	CheckID     string        `json:"check_id"`
	Severity    AuditSeverity `json:"severity"`
	Title       string        `json:"title"`
	Detail      string        `json:"detail"`
	Remediation string        `json:"remediation,omitempty"`
}

// AuditSummary tallies findings by severity.
type AuditSummary struct {
	Critical int `json:"critical"`
	Warn     int `json:"warn"`
	Info     int `json:"info"`
}

// AuditReport is the result of a full audit run.
type AuditReport struct {
	Timestamp time.Time      `json:"timestamp"`
	Summary   AuditSummary   `json:"summary"`
	Findings  []AuditFinding `json:"findings"`
}

// HasCritical reports whether any finding is critical severity.
func (r *AuditReport) HasCritical() bool {
	return r.Summary.Critical > 0
}

// AuditOptions configures which checks RunAudit performs.
type AuditOptions struct {
	// StateDir is Kestrel's data directory (conversation archives,
	// checkpoints); empty skips the filesystem checks against it.
	StateDir string

	// ConfigPath is the YAML configuration file to check, both for
	// file permissions and, combined with Config, for content.
	ConfigPath string

	// Config is the already-loaded configuration. If nil and
	// ConfigPath is set, RunAudit loads it itself.
	Config *config.Config

	// IncludeFilesystem enables permission/symlink checks.
	IncludeFilesystem bool

	// IncludeConfig enables configuration content checks.
	IncludeConfig bool

	// CheckSymlinks enables symlink detection during filesystem checks.
	CheckSymlinks bool

	// AllowGroupReadable suppresses group-readable findings, for
	// operators who intentionally share a state directory within a
	// trusted group.
	AllowGroupReadable bool
}

// DefaultAuditOptions returns the options used by "kestrel doctor" with
// no flags: both filesystem and config checks enabled, symlinks
// flagged, group-readable files treated as a finding.
func DefaultAuditOptions() AuditOptions {
	return AuditOptions{
		StateDir:           DefaultStateDir(),
		ConfigPath:         DefaultConfigPath(),
		IncludeFilesystem:  true,
		IncludeConfig:      true,
		CheckSymlinks:      true,
		AllowGroupReadable: false,
	}
}

// RunAudit performs the checks opts enables and returns a report with
// a computed summary.
func RunAudit(opts AuditOptions) (*AuditReport, error) {
	report := &AuditReport{
		Timestamp: time.Now(),
		Findings:  make([]AuditFinding, 0),
	}

	if opts.IncludeFilesystem {
		fsFindings, err := auditFilesystem(opts)
		if err != nil {
			return nil, fmt.Errorf("filesystem audit: %w", err)
		}
		report.Findings = append(report.Findings, fsFindings...)
	}

	if opts.IncludeConfig {
		cfg := opts.Config
		if cfg == nil && opts.ConfigPath != "" {
			loaded, err := config.Load(opts.ConfigPath)
			if err != nil {
				report.Findings = append(report.Findings, AuditFinding{
					CheckID:  "config.load_error",
					Severity: SeverityWarn,
					Title:    "Failed to load configuration",
					Detail:   fmt.Sprintf("could not load config from %s: %v", opts.ConfigPath, err),
				})
			} else {
				cfg = loaded
			}
		}
		if cfg != nil {
			report.Findings = append(report.Findings, auditConfigContent(cfg)...)
		}
	}

	report.Summary = computeSummary(report.Findings)
	return report, nil
}

func computeSummary(findings []AuditFinding) AuditSummary {
	var s AuditSummary
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarn:
			s.Warn++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}

// Auditor runs a fixed set of options repeatedly, e.g. from a
// "doctor" CLI command or a scheduled hook.
type Auditor struct {
	opts AuditOptions
}

// NewAuditor wraps opts for repeated use.
func NewAuditor(opts AuditOptions) *Auditor {
	return &Auditor{opts: opts}
}

// Audit runs the wrapped options. ctx is accepted for call-site
// symmetry with the rest of Kestrel's blocking operations but is not
// itself consulted: a single audit pass is always fast local I/O.
func (a *Auditor) Audit(_ context.Context) (*AuditReport, error) {
	return RunAudit(a.opts)
}

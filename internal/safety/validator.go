package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kestrel-agent/kestrel/internal/net/ssrf"
)

// Severity is the issue severity shape, narrowed from the teacher's
// security.AuditSeverity to the four levels the validator emits.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Issue is a single validation finding against one tool argument.
type Issue struct {
	Severity Severity
	Msg      string
}

// ValidationResult is the outcome of validating a tool call's
// arguments. Pass is false iff any Issue is critical or high.
type ValidationResult struct {
	Pass   bool
	Issues []Issue
}

// Validator applies per-tool argument rules. The vault prefix names a
// path segment that must never be touched by file-ops tools regardless
// of autonomy level (secrets storage, credential files).
type Validator struct {
	vaultPrefix string
}

// NewValidator creates a tool-argument validator. vaultPrefix is the
// path prefix (e.g. "/vault" or "~/.kestrel/vault") that file-ops tools
// must never read, write, list, or delete within.
func NewValidator(vaultPrefix string) *Validator {
	return &Validator{vaultPrefix: vaultPrefix}
}

var shellDangerPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"rm_via_semicolon", regexp.MustCompile(`;\s*rm\b`)},
	{"rm_via_and", regexp.MustCompile(`&&\s*rm\b`)},
	{"command_substitution", regexp.MustCompile(`\$\([^)]*\)`)},
	{"backtick_substitution", regexp.MustCompile("`[^`]*`")},
	{"block_device_write", regexp.MustCompile(`>\s*/dev/sd[a-z]`)},
	{"curl_pipe_sh", regexp.MustCompile(`curl[^|]*\|\s*sh\b`)},
	{"wget_pipe_sh", regexp.MustCompile(`wget[^|]*\|\s*sh\b`)},
}

// ValidateFileOp checks a file-ops argument (read, write, list, delete)
// against path-traversal and vault-access rules.
func (v *Validator) ValidateFileOp(op string, path string) ValidationResult {
	var issues []Issue

	if strings.Contains(path, "..") {
		issues = append(issues, Issue{SeverityCritical, fmt.Sprintf("path traversal segment in %q", path)})
	}
	if v.vaultPrefix != "" && strings.HasPrefix(path, v.vaultPrefix) {
		issues = append(issues, Issue{SeverityCritical, fmt.Sprintf("path %q is under the vault prefix", path)})
	}
	if v.vaultPrefix != "" && containsVaultSegment(path, v.vaultPrefix) {
		issues = append(issues, Issue{SeverityCritical, fmt.Sprintf("path %q contains a vault segment", path)})
	}

	return finalize(issues)
}

func containsVaultSegment(path, vaultPrefix string) bool {
	vaultName := strings.Trim(vaultPrefix, "/")
	if vaultName == "" {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg != "" && seg == vaultName {
			return true
		}
	}
	return false
}

// ValidateShellCommand checks a shell-tool command string against the
// closed set of destructive/exfiltration patterns.
func (v *Validator) ValidateShellCommand(cmd string) ValidationResult {
	var issues []Issue
	for _, p := range shellDangerPatterns {
		if p.re.MatchString(cmd) {
			issues = append(issues, Issue{SeverityCritical, fmt.Sprintf("command matches disallowed pattern %q", p.name)})
		}
	}
	return finalize(issues)
}

// ValidateFetchURL checks a fetch-tool URL: file:// and data: schemes
// are rejected outright, and hostnames/literal IPs resolving to
// internal address ranges are flagged.
func (v *Validator) ValidateFetchURL(rawURL string) ValidationResult {
	var issues []Issue

	lower := strings.ToLower(strings.TrimSpace(rawURL))
	switch {
	case strings.HasPrefix(lower, "file://"):
		issues = append(issues, Issue{SeverityCritical, "file:// scheme is not permitted"})
		return finalize(issues)
	case strings.HasPrefix(lower, "data:"):
		issues = append(issues, Issue{SeverityCritical, "data: scheme is not permitted"})
		return finalize(issues)
	}

	host := extractHost(rawURL)
	if host != "" {
		if ssrf.IsBlockedHostname(host) || ssrf.IsPrivateIPAddress(host) {
			issues = append(issues, Issue{SeverityHigh, fmt.Sprintf("host %q resolves to an internal address range", host)})
		}
	}

	return finalize(issues)
}

func extractHost(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	if strings.HasPrefix(rest, "[") {
		if i := strings.Index(rest, "]"); i >= 0 {
			return rest[1:i]
		}
	}
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		if _, err := parsePort(rest[i+1:]); err == nil {
			rest = rest[:i]
		}
	}
	return rest
}

func parsePort(s string) (int, error) {
	var n int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a port")
		}
		n = n*10 + int(r-'0')
	}
	if s == "" {
		return 0, fmt.Errorf("empty port")
	}
	return n, nil
}

func finalize(issues []Issue) ValidationResult {
	pass := true
	for _, is := range issues {
		if is.Severity == SeverityCritical || is.Severity == SeverityHigh {
			pass = false
			break
		}
	}
	return ValidationResult{Pass: pass, Issues: issues}
}

package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kestrel-agent/kestrel/internal/config"
)

// hardcodedSecretPatterns match provider credential formats that
// should come from an environment variable, never from a YAML file.
var hardcodedSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^sk-ant-[a-zA-Z0-9_-]{20,}`), // Anthropic API key
	regexp.MustCompile(`^sk-[a-zA-Z0-9]{20,}`),        // OpenAI API key
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}`),           // AWS access key
	regexp.MustCompile(`^ghp_[a-zA-Z0-9]{36}`),        // GitHub personal access token
}

// auditConfigContent checks the decoded configuration for insecure
// defaults and policy settings that widen the agent's blast radius.
func auditConfigContent(cfg *config.Config) []AuditFinding {
	if cfg == nil {
		return nil
	}

	var findings []AuditFinding
	findings = append(findings, auditHardcodedSecrets(cfg)...)
	findings = append(findings, auditAutonomyPolicy(cfg)...)
	findings = append(findings, auditSafetyPolicy(cfg)...)
	findings = append(findings, auditLoggingPolicy(cfg)...)
	return findings
}

// auditHardcodedSecrets flags the config's free-text fields
// (system_prompt, vault_prefix) when they look like a pasted-in
// credential rather than the prose or redaction-key prefix they are
// meant to hold.
func auditHardcodedSecrets(cfg *config.Config) []AuditFinding {
	var findings []AuditFinding

	check := func(field, value string) {
		for _, pattern := range hardcodedSecretPatterns {
			if pattern.MatchString(strings.TrimSpace(value)) {
				findings = append(findings, AuditFinding{
					CheckID:     fmt.Sprintf("config.hardcoded_secret.%s", field),
					Severity:    SeverityCritical,
					Title:       fmt.Sprintf("Possible hardcoded credential in %s", field),
					Detail:      fmt.Sprintf("%s matches the shape of a provider API key; it should never be committed to a config file.", field),
					Remediation: "move the credential to an environment variable (ANTHROPIC_API_KEY, OPENAI_API_KEY, AWS_REGION) and remove it from the config",
				})
				return
			}
		}
	}
	check("agent.system_prompt", cfg.Agent.SystemPrompt)
	check("safety.vault_prefix", cfg.Safety.VaultPrefix)

	return findings
}

// auditAutonomyPolicy flags autonomy settings that let the agent take
// real-world actions with no rate or spend ceiling.
func auditAutonomyPolicy(cfg *config.Config) []AuditFinding {
	var findings []AuditFinding

	if cfg.Autonomy.Level != "full" {
		return findings
	}

	if cfg.Autonomy.MaxActionsPerHour <= 0 {
		findings = append(findings, AuditFinding{
			CheckID:     "autonomy.unbounded_actions",
			Severity:    SeverityCritical,
			Title:       "Full autonomy with no action rate limit",
			Detail:      "autonomy.level is 'full' and autonomy.max_actions_per_hour is unset, so the agent can execute tools without any throttle.",
			Remediation: "set autonomy.max_actions_per_hour to a finite value appropriate for this deployment",
		})
	}
	if cfg.Autonomy.MaxCostPerDayCents <= 0 {
		findings = append(findings, AuditFinding{
			CheckID:     "autonomy.unbounded_spend",
			Severity:    SeverityCritical,
			Title:       "Full autonomy with no daily spend cap",
			Detail:      "autonomy.level is 'full' and autonomy.max_cost_per_day_cents is unset, so provider spend has no daily ceiling.",
			Remediation: "set autonomy.max_cost_per_day_cents to bound worst-case provider spend",
		})
	}

	return findings
}

// auditSafetyPolicy flags a missing vault prefix, which leaves the
// sanitizer with nothing to match when redacting previously-vaulted
// secrets out of tool output before it reaches the model.
func auditSafetyPolicy(cfg *config.Config) []AuditFinding {
	if strings.TrimSpace(cfg.Safety.VaultPrefix) != "" {
		return nil
	}
	return []AuditFinding{{
		CheckID:     "safety.no_vault_prefix",
		Severity:    SeverityWarn,
		Title:       "No safety vault prefix configured",
		Detail:      "safety.vault_prefix is empty; the sanitizer cannot recognize vaulted secret references in tool output.",
		Remediation: "set safety.vault_prefix to a namespace unlikely to appear in ordinary tool output",
	}}
}

// auditLoggingPolicy flags debug-level logging, which in Kestrel's
// teacher-derived logger includes tool call arguments and results.
func auditLoggingPolicy(cfg *config.Config) []AuditFinding {
	if strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) != "debug" {
		return nil
	}
	return []AuditFinding{{
		CheckID:  "logging.debug_verbosity",
		Severity: SeverityInfo,
		Title:    "Debug logging enabled",
		Detail:   "logging.level is 'debug'; log output will include tool call arguments and results, which may contain sensitive data.",
	}}
}

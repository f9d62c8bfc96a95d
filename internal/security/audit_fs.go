package security

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// auditFilesystem performs filesystem permission and symlink checks
// against the state directory and config file.
func auditFilesystem(opts AuditOptions) ([]AuditFinding, error) {
	var findings []AuditFinding

	if opts.StateDir != "" {
		dirFindings, err := checkDirectory(opts.StateDir, "state directory", opts)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		findings = append(findings, dirFindings...)
	}

	if opts.ConfigPath != "" {
		fileFindings, err := checkConfigFile(opts.ConfigPath, opts)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		findings = append(findings, fileFindings...)
	}

	return findings, nil
}

// Permission bit constants.
const (
	worldReadable = 0004
	worldWritable = 0002
	groupReadable = 0040
	groupWritable = 0020
)

func isWorldWritable(mode fs.FileMode) bool { return mode&worldWritable != 0 }
func isGroupWritable(mode fs.FileMode) bool { return mode&groupWritable != 0 }
func isWorldReadable(mode fs.FileMode) bool { return mode&worldReadable != 0 }
func isGroupReadable(mode fs.FileMode) bool { return mode&groupReadable != 0 }

// isSensitiveFile checks if a file path indicates sensitive content:
// checkpoints and conversation archives can carry tool outputs,
// memory recall text, and anything the agent has read via a fetch
// tool call, so they get the same scrutiny as credential files.
func isSensitiveFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))

	patterns := []string{
		"key", "secret", "token", "credential", "password", "private",
		".pem", ".key", ".p12", ".pfx",
		"id_rsa", "id_ed25519", "id_ecdsa", "id_dsa",
		"checkpoint", "events.jsonl", "meta.json",
	}
	for _, p := range patterns {
		if strings.Contains(base, p) {
			return true
		}
	}

	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return true
	}
	return false
}

// checkDirectory audits permissions on a directory and, recursively,
// the files within it.
func checkDirectory(path, description string, opts AuditOptions) ([]AuditFinding, error) {
	var findings []AuditFinding

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if opts.CheckSymlinks && info.Mode()&os.ModeSymlink != 0 {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.symlink_state_dir",
			Severity:    SeverityWarn,
			Title:       fmt.Sprintf("%s is a symlink", description),
			Detail:      fmt.Sprintf("the %s at %s is a symbolic link, which can cross trust boundaries", description, path),
			Remediation: "use a real directory instead of a symlink for sensitive data storage",
		})
	}

	mode := info.Mode().Perm()
	if isWorldWritable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.state_dir_world_writable",
			Severity:    SeverityCritical,
			Title:       fmt.Sprintf("%s is world-writable", description),
			Detail:      fmt.Sprintf("the %s at %s has permissions %o", description, path, mode),
			Remediation: fmt.Sprintf("chmod o-w %s", path),
		})
	}
	if isGroupWritable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.state_dir_group_writable",
			Severity:    SeverityWarn,
			Title:       fmt.Sprintf("%s is group-writable", description),
			Detail:      fmt.Sprintf("the %s at %s has permissions %o", description, path, mode),
			Remediation: fmt.Sprintf("chmod g-w %s", path),
		})
	}
	if isWorldReadable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.state_dir_world_readable",
			Severity:    SeverityWarn,
			Title:       fmt.Sprintf("%s is world-readable", description),
			Detail:      fmt.Sprintf("the %s at %s has permissions %o", description, path, mode),
			Remediation: fmt.Sprintf("chmod o-r %s", path),
		})
	}
	if !opts.AllowGroupReadable && isGroupReadable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.state_dir_group_readable",
			Severity:    SeverityInfo,
			Title:       fmt.Sprintf("%s is group-readable", description),
			Detail:      fmt.Sprintf("the %s at %s has permissions %o", description, path, mode),
			Remediation: fmt.Sprintf("chmod 700 %s", path),
		})
	}

	if info.IsDir() {
		walkErr := filepath.WalkDir(path, func(filePath string, d fs.DirEntry, err error) error {
			if err != nil || filePath == path {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}

			if opts.CheckSymlinks && fi.Mode()&os.ModeSymlink != 0 {
				findings = append(findings, AuditFinding{
					CheckID:     "fs.symlink_in_state",
					Severity:    SeverityInfo,
					Title:       "Symlink found in state directory",
					Detail:      fmt.Sprintf("%s is a symbolic link", filePath),
					Remediation: "review whether this symlink is necessary and trusted",
				})
			}

			fileMode := fi.Mode().Perm()
			if isSensitiveFile(filePath) {
				if isWorldReadable(fileMode) {
					findings = append(findings, AuditFinding{
						CheckID:     "fs.sensitive_file_world_readable",
						Severity:    SeverityCritical,
						Title:       "Sensitive file is world-readable",
						Detail:      fmt.Sprintf("%s has permissions %o", filePath, fileMode),
						Remediation: fmt.Sprintf("chmod 600 %s", filePath),
					})
				}
				if isWorldWritable(fileMode) {
					findings = append(findings, AuditFinding{
						CheckID:     "fs.sensitive_file_world_writable",
						Severity:    SeverityCritical,
						Title:       "Sensitive file is world-writable",
						Detail:      fmt.Sprintf("%s has permissions %o", filePath, fileMode),
						Remediation: fmt.Sprintf("chmod 600 %s", filePath),
					})
				}
				if !opts.AllowGroupReadable && isGroupReadable(fileMode) {
					findings = append(findings, AuditFinding{
						CheckID:     "fs.sensitive_file_group_readable",
						Severity:    SeverityWarn,
						Title:       "Sensitive file is group-readable",
						Detail:      fmt.Sprintf("%s has permissions %o", filePath, fileMode),
						Remediation: fmt.Sprintf("chmod 600 %s", filePath),
					})
				}
			}
			return nil
		})
		if walkErr != nil {
			return findings, walkErr
		}
	}

	return findings, nil
}

// checkConfigFile audits permissions on the config file itself.
func checkConfigFile(path string, opts AuditOptions) ([]AuditFinding, error) {
	var findings []AuditFinding

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if opts.CheckSymlinks && info.Mode()&os.ModeSymlink != 0 {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.config_symlink",
			Severity:    SeverityWarn,
			Title:       "Config file is a symlink",
			Detail:      fmt.Sprintf("the configuration file at %s is a symbolic link", path),
			Remediation: "use a real file instead of a symlink for the configuration",
		})
	}

	mode := info.Mode().Perm()
	if isWorldWritable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.config_world_writable",
			Severity:    SeverityCritical,
			Title:       "Config file is world-writable",
			Detail:      fmt.Sprintf("%s has permissions %o, allowing any user to modify it", path, mode),
			Remediation: fmt.Sprintf("chmod 600 %s", path),
		})
	}
	if isGroupWritable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.config_group_writable",
			Severity:    SeverityWarn,
			Title:       "Config file is group-writable",
			Detail:      fmt.Sprintf("%s has permissions %o", path, mode),
			Remediation: fmt.Sprintf("chmod 600 %s", path),
		})
	}
	if isWorldReadable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.config_world_readable",
			Severity:    SeverityCritical,
			Title:       "Config file is world-readable",
			Detail:      fmt.Sprintf("%s has permissions %o; config files can carry a vault prefix and system prompt text", path, mode),
			Remediation: fmt.Sprintf("chmod 600 %s", path),
		})
	}
	if !opts.AllowGroupReadable && isGroupReadable(mode) {
		findings = append(findings, AuditFinding{
			CheckID:     "fs.config_group_readable",
			Severity:    SeverityWarn,
			Title:       "Config file is group-readable",
			Detail:      fmt.Sprintf("%s has permissions %o", path, mode),
			Remediation: fmt.Sprintf("chmod 600 %s", path),
		})
	}

	return findings, nil
}

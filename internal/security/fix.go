package security

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultStateDir returns Kestrel's default data directory,
// ~/.kestrel, falling back to a relative path if the home directory
// cannot be resolved.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kestrel"
	}
	return filepath.Join(home, ".kestrel")
}

// DefaultConfigPath returns Kestrel's default configuration file path.
func DefaultConfigPath() string {
	return "kestrel.yaml"
}

// FixAction records a single permission change Fix attempted.
type FixAction struct {
	Type        string `json:"type"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Success     bool   `json:"success"`
	Skipped     string `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FixResult summarizes a Fix run.
type FixResult struct {
	Actions      []FixAction `json:"actions"`
	FixedCount   int         `json:"fixed_count"`
	SkippedCount int         `json:"skipped_count"`
	ErrorCount   int         `json:"error_count"`
}

// FixOptions configures Fix.
type FixOptions struct {
	// StateDir is Kestrel's data directory.
	StateDir string

	// ConfigPath is the configuration file to tighten.
	ConfigPath string

	// DryRun reports what would change without making changes.
	DryRun bool
}

// sensitiveStateFiles and sensitiveStateDirs are the paths Fix
// tightens unconditionally when found under StateDir, mirroring what
// isSensitiveFile (audit_fs.go) flags during an audit.
var (
	sensitiveStateFiles = []string{"kestrel.yaml", "kestrel.yml", "secrets.yaml"}
	sensitiveStateDirs  = []string{"credentials", "tokens", "keys", "checkpoints"}
)

// Fix applies the remediations RunAudit's filesystem checks recommend:
// 0700 on the state directory and its sensitive subdirectories, 0600
// on the config file and known sensitive files within the state
// directory.
func Fix(opts FixOptions) *FixResult {
	result := &FixResult{Actions: make([]FixAction, 0)}

	if opts.StateDir != "" {
		result.Actions = append(result.Actions, fixDirectoryPermissions(opts.StateDir, 0700, opts.DryRun))

		for _, name := range sensitiveStateFiles {
			path := filepath.Join(opts.StateDir, name)
			if _, err := os.Stat(path); err == nil {
				result.Actions = append(result.Actions, fixFilePermissions(path, 0600, opts.DryRun))
			}
		}

		for _, name := range sensitiveStateDirs {
			path := filepath.Join(opts.StateDir, name)
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				continue
			}
			result.Actions = append(result.Actions, fixDirectoryPermissions(path, 0700, opts.DryRun))
			entries, _ := os.ReadDir(path)
			for _, entry := range entries {
				if !entry.IsDir() {
					result.Actions = append(result.Actions, fixFilePermissions(filepath.Join(path, entry.Name()), 0600, opts.DryRun))
				}
			}
		}
	}

	if opts.ConfigPath != "" {
		result.Actions = append(result.Actions, fixFilePermissions(opts.ConfigPath, 0600, opts.DryRun))
	}

	for _, action := range result.Actions {
		switch {
		case action.Success:
			result.FixedCount++
		case action.Skipped != "":
			result.SkippedCount++
		case action.Error != "":
			result.ErrorCount++
		}
	}

	return result
}

func fixFilePermissions(path string, mode os.FileMode, dryRun bool) FixAction {
	action := FixAction{Type: "chmod", Path: path, Description: fmt.Sprintf("set file permissions to %o", mode)}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			action.Skipped = "file does not exist"
			return action
		}
		action.Error = fmt.Sprintf("stat: %v", err)
		return action
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		action.Skipped = "symlink (not modified for safety)"
		return action
	}
	if !info.Mode().IsRegular() {
		action.Skipped = "not a regular file"
		return action
	}

	current := info.Mode().Perm()
	if current == mode {
		action.Skipped = "already has correct permissions"
		return action
	}
	if dryRun {
		action.Description = fmt.Sprintf("would change from %o to %o", current, mode)
		action.Success = true
		return action
	}
	if err := os.Chmod(path, mode); err != nil {
		action.Error = fmt.Sprintf("chmod: %v", err)
		return action
	}
	action.Description = fmt.Sprintf("changed from %o to %o", current, mode)
	action.Success = true
	return action
}

func fixDirectoryPermissions(path string, mode os.FileMode, dryRun bool) FixAction {
	action := FixAction{Type: "chmod", Path: path, Description: fmt.Sprintf("set directory permissions to %o", mode)}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			action.Skipped = "directory does not exist"
			return action
		}
		action.Error = fmt.Sprintf("stat: %v", err)
		return action
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		action.Skipped = "symlink (not modified for safety)"
		return action
	}
	if !info.IsDir() {
		action.Skipped = "not a directory"
		return action
	}

	current := info.Mode().Perm()
	if current == mode {
		action.Skipped = "already has correct permissions"
		return action
	}
	if dryRun {
		action.Description = fmt.Sprintf("would change from %o to %o", current, mode)
		action.Success = true
		return action
	}
	if err := os.Chmod(path, mode); err != nil {
		action.Error = fmt.Sprintf("chmod: %v", err)
		return action
	}
	action.Description = fmt.Sprintf("changed from %o to %o", current, mode)
	action.Success = true
	return action
}

// RunDefaultFix fixes permissions under the default state dir/config
// path.
func RunDefaultFix() *FixResult {
	return Fix(FixOptions{StateDir: DefaultStateDir(), ConfigPath: DefaultConfigPath()})
}

// RunDefaultFixDryRun reports, without changing anything, what
// RunDefaultFix would do.
func RunDefaultFixDryRun() *FixResult {
	return Fix(FixOptions{StateDir: DefaultStateDir(), ConfigPath: DefaultConfigPath(), DryRun: true})
}

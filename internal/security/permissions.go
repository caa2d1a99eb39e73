// internal/security/permissions.go
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrInsecureMode is wrapped by the permission checks when a path is open to
// other users.
var ErrInsecureMode = errors.New("insecure permissions")

const (
	dataDirMode fs.FileMode = 0700
	// Group may list the data dir; nobody else may touch it.
	dataDirMask fs.FileMode = 0027
	// A rule file only needs to be kept out of other users' hands for writing.
	ruleFileMask fs.FileMode = 0022
)

// EnsureDataDir creates the data directory owner-only. An existing directory
// keeps its mode; ValidateDirectoryPermissions reports on it.
func EnsureDataDir(path string) error {
	if err := os.MkdirAll(path, dataDirMode); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// ValidateDirectoryPermissions checks the data directory holding the
// preference database and logs. 0700 and 0750 pass.
func ValidateDirectoryPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", path)
	}
	return checkMode(path, info.Mode().Perm(), dataDirMask)
}

// ValidateFilePermissions checks that a custom rule file cannot be rewritten
// by other users.
func ValidateFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking rule file: %w", err)
	}
	return checkMode(path, info.Mode().Perm(), ruleFileMask)
}

func checkMode(path string, mode, forbidden fs.FileMode) error {
	if bad := mode & forbidden; bad != 0 {
		return fmt.Errorf("%s has mode %04o (%04o not allowed): %w", path, mode, bad, ErrInsecureMode)
	}
	return nil
}

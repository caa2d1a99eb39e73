// internal/security/permissions_test.go
package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateDirectoryPermissions(t *testing.T) {
	tests := []struct {
		mode    os.FileMode
		wantErr bool
	}{
		{0700, false},
		{0750, false},
		{0710, false},
		{0770, true},
		{0755, true},
		{0766, true},
		{0777, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			dir := t.TempDir()
			if err := os.Chmod(dir, tt.mode); err != nil {
				t.Fatalf("chmod failed: %v", err)
			}

			err := ValidateDirectoryPermissions(dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDirectoryPermissions(%04o) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInsecureMode) {
				t.Errorf("error %v does not wrap ErrInsecureMode", err)
			}
		})
	}
}

func TestValidateDirectoryPermissions_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "preferences.db")
	os.WriteFile(file, nil, 0600)

	if err := ValidateDirectoryPermissions(file); err == nil {
		t.Error("expected error for a regular file")
	}
}

func TestValidateDirectoryPermissions_NonexistentDir(t *testing.T) {
	if err := ValidateDirectoryPermissions("/nonexistent/path/that/does/not/exist"); err == nil {
		t.Error("expected error for nonexistent directory")
	}
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home", ".nope")

	if err := EnsureDataDir(dir); err != nil {
		t.Fatalf("EnsureDataDir() error = %v", err)
	}
	if err := ValidateDirectoryPermissions(dir); err != nil {
		t.Errorf("new data dir should pass validation: %v", err)
	}
	if err := EnsureDataDir(dir); err != nil {
		t.Errorf("EnsureDataDir() on existing dir error = %v", err)
	}
}

func TestValidateFilePermissions(t *testing.T) {
	dir := t.TempDir()

	safe := filepath.Join(dir, "rules.yaml")
	os.WriteFile(safe, []byte("mode: extend\n"), 0644)
	if err := ValidateFilePermissions(safe); err != nil {
		t.Errorf("expected no error for 0644 file, got: %v", err)
	}

	groupWritable := filepath.Join(dir, "group.yaml")
	os.WriteFile(groupWritable, []byte("mode: extend\n"), 0600)
	if err := os.Chmod(groupWritable, 0664); err != nil {
		t.Fatal(err)
	}
	if err := ValidateFilePermissions(groupWritable); !errors.Is(err, ErrInsecureMode) {
		t.Errorf("expected ErrInsecureMode for group-writable file, got: %v", err)
	}

	open := filepath.Join(dir, "open.yaml")
	os.WriteFile(open, []byte("mode: extend\n"), 0666)
	if err := os.Chmod(open, 0666); err != nil {
		t.Fatal(err)
	}
	if err := ValidateFilePermissions(open); err == nil {
		t.Error("expected error for world-writable file")
	}
}

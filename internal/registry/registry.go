// Package registry keeps a ledger of delivered notifications for platforms
// whose notification service cannot enumerate what it has shown.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the name of the ledger file inside the state directory.
	FileName = "delivered.yaml"
	// BackupSuffix is the suffix for backup files when corruption is detected.
	BackupSuffix = ".backup"
)

// Entry represents one delivered notification.
type Entry struct {
	// Token is the correlation token of the request that produced it.
	Token string `yaml:"token"`
	// PlatformID is the identifier the notification service assigned (may be empty).
	PlatformID string `yaml:"platform_id,omitempty"`
	// Group is the caller-supplied group key (may be empty).
	Group    string `yaml:"group,omitempty"`
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle,omitempty"`
	Message  string `yaml:"message"`
	// DeliveredAt is when the service accepted the notification.
	DeliveredAt time.Time `yaml:"delivered_at"`
	// PID is the process that delivered the notification and waits on it.
	PID int `yaml:"pid"`
}

// File represents the YAML ledger file.
type File struct {
	// Entries is ordered by delivery time, oldest first.
	Entries []Entry `yaml:"entries"`
}

// DefaultStateDir returns the default directory for the ledger.
// Location: <user cache dir>/alerter
func DefaultStateDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting cache directory: %w", err)
	}
	return filepath.Join(cacheDir, "alerter"), nil
}

// Load reads the ledger from stateDir.
// Returns an empty ledger if the file doesn't exist.
// A corrupted file is backed up and replaced by an empty ledger.
func Load(stateDir string) (*File, error) {
	path := filepath.Join(stateDir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Entries: []Entry{}}, nil
		}
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		if backupErr := backupCorruptedFile(path); backupErr != nil {
			return nil, fmt.Errorf("backing up corrupted ledger: %w", backupErr)
		}
		return &File{Entries: []Entry{}}, nil
	}

	if f.Entries == nil {
		f.Entries = []Entry{}
	}
	return &f, nil
}

func backupCorruptedFile(path string) error {
	if err := os.Rename(path, path+BackupSuffix); err != nil {
		return fmt.Errorf("renaming corrupted file to backup: %w", err)
	}
	return nil
}

// Save writes the ledger to stateDir atomically, creating the directory if needed.
func Save(stateDir string, f *File) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	path := filepath.Join(stateDir, FileName)
	tmp := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp ledger: %w", err)
	}
	return nil
}

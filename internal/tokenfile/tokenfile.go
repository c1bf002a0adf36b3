// Package tokenfile persists MythX sessions between CLI invocations. A
// session file holds the JWT pair issued by login or refresh plus the
// identity and endpoint it was issued for. Passwords are never written.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// FilePerms restricts session files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the state directory.
const DirPerms = 0o700

// ErrMismatch is returned by Load when the file belongs to a different
// address or endpoint than the caller expects.
var ErrMismatch = errors.New("tokenfile: session belongs to another account or endpoint")

// Session is the on-disk format. The token is stored in oauth2.Token shape so
// the file stays readable by generic OAuth tooling.
type Session struct {
	Address string        `json:"address"`
	APIURL  string        `json:"api_url"`
	Token   *oauth2.Token `json:"token"`
	SavedAt time.Time     `json:"saved_at"`
}

// Load reads the session file at path. Returns (nil, nil) if it does not
// exist. When address or apiURL are non-empty they must match the stored
// values (address case-insensitively), otherwise ErrMismatch is returned.
func Load(path, address, apiURL string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if s.Token == nil || s.Token.AccessToken == "" {
		return nil, fmt.Errorf("tokenfile: %s has no access token (login required)", path)
	}

	if address != "" && !strings.EqualFold(s.Address, address) {
		return nil, fmt.Errorf("%w: %s is for %s", ErrMismatch, path, s.Address)
	}

	if apiURL != "" && s.APIURL != apiURL {
		return nil, fmt.Errorf("%w: %s is for %s", ErrMismatch, path, s.APIURL)
	}

	return &s, nil
}

// Save writes s to path atomically (temp file + rename) with 0600
// permissions. SavedAt is stamped if unset.
func Save(path string, s *Session) error {
	if s == nil || s.Token == nil {
		return errors.New("tokenfile: refusing to save a session without a token")
	}

	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, err)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	return nil
}

func writeSynced(f *os.File, data []byte) error {
	defer f.Close()

	if err := f.Chmod(FilePerms); err != nil {
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	return nil
}

// Remove deletes the session file. A missing file is not an error, so
// logout is idempotent. Reports whether a file was removed.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return true, nil
}

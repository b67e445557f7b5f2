/*
Package certstore keeps medical certificate files on the local filesystem.

PURPOSE:
  Implements leave.CertificateFiles. Uploaded files are copied into one
  managed directory under a generated name, so two uploads never collide
  and the file can be traced back to its agent and leave:

      cert_<agentRef>_<leaveID>_<YYYYMMDDhhmmss>_<uuid8><ext>

  The engine calls Store after the leave transaction commits; a failure
  here never undoes a saved leave.

SEE ALSO:
  - leave/certificate.go: attach and cleanup steps
*/
package certstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/leave"
)

// Store copies certificates into Dir.
type Store struct {
	Dir string
	now func() time.Time
}

var _ leave.CertificateFiles = (*Store)(nil)

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("certificates directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create certificates directory: %w", err)
	}
	return &Store{Dir: dir, now: time.Now}, nil
}

// Store copies sourcePath into the managed directory and returns the new path.
func (s *Store) Store(sourcePath, agentRef string, leaveID leave.LeaveID) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open certificate: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("stat certificate: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("certificate %s is a directory", sourcePath)
	}

	dest := filepath.Join(s.Dir, s.fileName(sourcePath, agentRef, leaveID))

	// Write to a temp name first so a partial copy is never visible.
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create certificate: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy certificate: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy certificate: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy certificate: %w", err)
	}
	return dest, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether path is an existing regular file.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) fileName(sourcePath, agentRef string, leaveID leave.LeaveID) string {
	return fmt.Sprintf("cert_%s_%d_%s_%s%s",
		safeRef(agentRef),
		leaveID,
		s.now().Format("20060102150405"),
		uuid.NewString()[:8],
		strings.ToLower(filepath.Ext(sourcePath)),
	)
}

// safeRef keeps reference codes usable as a file name component.
func safeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, ref)
}

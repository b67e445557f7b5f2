package leave

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// CERTIFICATE FILES - Post-commit step, never rolled back
// =============================================================================

// CertificateFiles copies certificate files into managed storage.
// Implemented by certstore.Store.
type CertificateFiles interface {
	Store(sourcePath, agentRef string, leaveID LeaveID) (string, error)
	Remove(path string) error
	Exists(path string) bool
}

var errNoCertificateStore = errors.New("no certificate store configured")

// attachCertificate copies the upload, records it against the leave, then
// drops the previous file. Runs after commit; a failure comes back as an
// AttachmentWarning and the leave stays saved.
//
// The previous file is dropped on failure too: its row went with the
// replaced record, so nothing refers to it any more.
func (e *Engine) attachCertificate(ctx context.Context, agent Agent, leaveID LeaveID, up *CertificateUpload, previous string) error {
	var stored string
	defer func() {
		if previous != "" && previous != stored {
			e.removeFiles(previous)
		}
	}()

	if e.files == nil {
		return &AttachmentWarning{LeaveID: leaveID, Path: up.SourcePath, Err: errNoCertificateStore}
	}

	path, err := e.files.Store(up.SourcePath, agent.Reference, leaveID)
	if err != nil {
		e.log.WithError(err).WithField("leave_id", leaveID).Warn("certificate copy failed")
		return &AttachmentWarning{LeaveID: leaveID, Path: up.SourcePath, Err: err}
	}

	cert := Certificate{
		LeaveID:      leaveID,
		DurationDays: up.DurationDays,
		DoctorName:   up.DoctorName,
		FilePath:     path,
	}
	if err := e.store.SaveCertificate(ctx, cert); err != nil {
		e.removeFiles(path)
		e.log.WithError(err).WithField("leave_id", leaveID).Warn("certificate record failed")
		return &AttachmentWarning{LeaveID: leaveID, Path: path, Err: err}
	}
	stored = path
	return nil
}

// removeFiles deletes files left behind by removed leaves. Failures are
// logged and reported as one warning.
func (e *Engine) removeFiles(paths ...string) error {
	if e.files == nil {
		return nil
	}
	var firstErr error
	var firstPath string
	for _, p := range paths {
		if p == "" || !e.files.Exists(p) {
			continue
		}
		if err := e.files.Remove(p); err != nil {
			e.log.WithFields(logrus.Fields{"path": p}).WithError(err).Warn("certificate file not removed")
			if firstErr == nil {
				firstErr, firstPath = err, p
			}
		}
	}
	if firstErr != nil {
		return &AttachmentWarning{Path: firstPath, Err: firstErr}
	}
	return nil
}

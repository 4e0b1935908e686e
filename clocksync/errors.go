package clocksync

import "errors"

// Failure classes of a pass. None of them stop the loop; callers match with errors.Is.
var (
	// ErrDeviceUnreachable marks a device whose events could not be fetched this pass.
	ErrDeviceUnreachable = errors.New("device unreachable")
	// ErrInvalidRecord marks a raw event dropped by the normalizer.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUploadRejected marks a record refused at the write boundary without a remote call.
	ErrUploadRejected = errors.New("upload rejected")
	// ErrTransient marks a ledger failure; the record is retried next pass.
	ErrTransient = errors.New("transient ledger error")
	// ErrSafetyAbort marks a pass whose upload phase was skipped by the safety valve.
	ErrSafetyAbort = errors.New("safety abort")
)

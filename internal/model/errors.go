package model

import "errors"

// Storage-level sentinels surfaced by repositories when a uniqueness
// constraint resolves a race. Services translate them into domain errors
// or idempotent fallbacks.
var (
	// ErrDuplicateActiveAttempt: the partial unique index on
	// (exam_id, student_id) WHERE status = 'IN_PROGRESS' rejected an insert.
	ErrDuplicateActiveAttempt = errors.New("student already has an active attempt")

	// ErrDuplicateCertificate: the unique constraint on certificates.result_id
	// rejected an insert; a concurrent evaluation already issued it.
	ErrDuplicateCertificate = errors.New("certificate already issued for this result")
)

package model

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is issued at most once per exam result (unique result_id).
// The verification token gates the public QR verification page.
type Certificate struct {
	ID                uuid.UUID  `json:"id"`
	CertificateNo     string     `json:"certificate_no"`
	ResultID          uuid.UUID  `json:"result_id"`
	ExamID            uuid.UUID  `json:"exam_id"`
	StudentID         uuid.UUID  `json:"student_id"`
	CourseID          uuid.UUID  `json:"course_id"`
	FacultyID         *uuid.UUID `json:"faculty_id,omitempty"`
	ScorePercentage   float64    `json:"score_percentage"`
	PassedAt          time.Time  `json:"passed_at"`
	FileKey           string     `json:"-"`
	QRPayload         string     `json:"-"`
	VerificationToken string     `json:"-"`
	IssuedAt          time.Time  `json:"issued_at"`
	Revoked           bool       `json:"revoked"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

// StudentCertificateRow is one entry of the student's certificate listing.
type StudentCertificateRow struct {
	CertificateID   uuid.UUID `json:"certificate_id"`
	CertificateNo   string    `json:"certificate_no"`
	CourseName      string    `json:"course_name"`
	ScorePercentage float64   `json:"score_percentage"`
	PassedAt        time.Time `json:"passed_at"`
	IssuedAt        time.Time `json:"issued_at"`
	Revoked         bool      `json:"revoked"`
	DownloadURL     string    `json:"download_url"`
	VerificationURL string    `json:"verification_url"`
}

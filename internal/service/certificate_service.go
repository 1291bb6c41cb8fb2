package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credentia/certportal-backend/internal/model"
)

// CertificateMinPercentage is the issuance bar. Passing an exam (>= 70%)
// does not by itself earn a certificate.
const CertificateMinPercentage = 75.0

// CertificateIssueInput is the issuance request produced on terminal
// attempt transitions.
type CertificateIssueInput struct {
	ResultID        uuid.UUID
	ExamID          uuid.UUID
	StudentID       uuid.UUID
	CourseID        uuid.UUID
	FacultyID       *uuid.UUID
	ScorePercentage float64
	PassedAt        time.Time
}

// CertificateSummary is the certificate view embedded in evaluation
// responses and listings.
type CertificateSummary struct {
	CertificateID   uuid.UUID `json:"certificate_id"`
	CertificateNo   string    `json:"certificate_no"`
	ScorePercentage float64   `json:"score_percentage"`
	IssuedAt        time.Time `json:"issued_at"`
	DownloadURL     string    `json:"download_url"`
	VerificationURL string    `json:"verification_url"`
}

// CertificateVerification is the public verification page payload. Invalid
// verdicts (unknown number, wrong token, revoked) carry no holder details.
type CertificateVerification struct {
	Valid           bool       `json:"valid"`
	CertificateNo   string     `json:"certificate_no"`
	StudentName     string     `json:"student_name,omitempty"`
	CourseName      string     `json:"course_name,omitempty"`
	ScorePercentage float64    `json:"score_percentage,omitempty"`
	PassedAt        *time.Time `json:"passed_at,omitempty"`
	IssuedAt        *time.Time `json:"issued_at,omitempty"`
}

// CertificateStore is the persistence contract for issued certificates.
type CertificateStore interface {
	GetByResult(ctx context.Context, resultID uuid.UUID) (*model.Certificate, error)
	// GetByNumber looks a certificate up by its public number, joined with
	// student and course display names for the verification page.
	GetByNumber(ctx context.Context, certificateNo string) (*model.Certificate, string, string, error)
	GetOwned(ctx context.Context, certificateID, studentID uuid.UUID) (*model.Certificate, error)
	// Insert persists a new certificate, returning
	// model.ErrDuplicateCertificate when the unique result_id constraint
	// rejects it.
	Insert(ctx context.Context, cert *model.Certificate) error
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Certificate, error)
	CourseName(ctx context.Context, courseID uuid.UUID) (string, error)
	// CourseCode resolves the short course code that feeds certificate
	// numbering.
	CourseCode(ctx context.Context, courseID uuid.UUID) (string, error)
	// UserFullName resolves a user's display name; serves both the student
	// and the trainer on the certificate.
	UserFullName(ctx context.Context, userID uuid.UUID) (string, error)
}

// CertificateRenderer turns certificate data into a PDF document.
type CertificateRenderer interface {
	Render(data CertificatePDFData) ([]byte, error)
}

// CertificateStorage persists and serves rendered PDFs.
type CertificateStorage interface {
	// Save writes the PDF and returns its storage key.
	Save(certificateNo string, pdf []byte) (string, error)
	// SafeDelete removes a stored PDF, swallowing not-found.
	SafeDelete(fileKey string) error
	// ReadablePath resolves a file key to a servable filesystem path.
	ReadablePath(fileKey string) (string, error)
}

// CertificatePDFData is everything the renderer needs on the page.
type CertificatePDFData struct {
	CertificateNo   string
	StudentName     string
	CourseName      string
	TrainerName     string
	ScorePercentage float64
	PassedAt        time.Time
	IssuedAt        time.Time
	VerificationURL string
}

// DefaultTrainerName is printed when the exam has no assigned faculty.
const DefaultTrainerName = "Assigned Faculty"

// CertificateService issues, lists, serves and verifies certificates.
// Issuance is idempotent per exam result: the unique constraint on
// result_id is the arbiter when two evaluations race, and the loser adopts
// the winner's row.
type CertificateService struct {
	store    CertificateStore
	renderer CertificateRenderer
	storage  CertificateStorage
	baseURL  string
	log      zerolog.Logger
	now      func() time.Time
}

// NewCertificateService creates a new CertificateService.
func NewCertificateService(
	store CertificateStore,
	renderer CertificateRenderer,
	storage CertificateStorage,
	baseURL string,
	log zerolog.Logger,
) *CertificateService {
	return &CertificateService{
		store:    store,
		renderer: renderer,
		storage:  storage,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log.With().Str("component", "certificate_service").Logger(),
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *CertificateService) WithClock(now func() time.Time) *CertificateService {
	s.now = now
	return s
}

// IssueIfEligible issues a certificate when the score clears the bar.
// Below the bar it returns (nil, nil). Repeat calls for the same result
// return the already-issued certificate.
func (s *CertificateService) IssueIfEligible(ctx context.Context, input CertificateIssueInput) (*CertificateSummary, error) {
	if input.ScorePercentage < CertificateMinPercentage {
		return nil, nil
	}

	existing, err := s.store.GetByResult(ctx, input.ResultID)
	if err != nil {
		return nil, InternalError("lookup certificate", err)
	}
	if existing != nil {
		return s.summary(existing), nil
	}

	courseName, err := s.store.CourseName(ctx, input.CourseID)
	if err != nil {
		return nil, InternalError("lookup course", err)
	}
	courseCode, err := s.store.CourseCode(ctx, input.CourseID)
	if err != nil {
		return nil, InternalError("lookup course code", err)
	}
	studentName, err := s.store.UserFullName(ctx, input.StudentID)
	if err != nil {
		return nil, InternalError("lookup student", err)
	}
	trainerName := DefaultTrainerName
	if input.FacultyID != nil {
		name, err := s.store.UserFullName(ctx, *input.FacultyID)
		if err != nil {
			return nil, InternalError("lookup faculty", err)
		}
		if name != "" {
			trainerName = name
		}
	}

	cert := &model.Certificate{
		ID:                uuid.New(),
		CertificateNo:     buildCertificateNo(input.ResultID, courseCode, input.PassedAt),
		ResultID:          input.ResultID,
		ExamID:            input.ExamID,
		StudentID:         input.StudentID,
		CourseID:          input.CourseID,
		FacultyID:         input.FacultyID,
		ScorePercentage:   input.ScorePercentage,
		PassedAt:          input.PassedAt,
		VerificationToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		IssuedAt:          s.now(),
	}
	cert.QRPayload = s.BuildVerificationURL(cert.CertificateNo, cert.VerificationToken)

	pdf, err := s.renderer.Render(CertificatePDFData{
		CertificateNo:   cert.CertificateNo,
		StudentName:     studentName,
		CourseName:      courseName,
		TrainerName:     trainerName,
		ScorePercentage: cert.ScorePercentage,
		PassedAt:        cert.PassedAt,
		IssuedAt:        cert.IssuedAt,
		VerificationURL: cert.QRPayload,
	})
	if err != nil {
		return nil, InternalError("render certificate pdf", err)
	}

	// The storage key carries the certificate id so two racing issuers for
	// the same result never write to the same file.
	fileKey, err := s.storage.Save(fmt.Sprintf("%s-%s", cert.CertificateNo, cert.ID), pdf)
	if err != nil {
		return nil, InternalError("store certificate pdf", err)
	}
	cert.FileKey = fileKey

	if err := s.store.Insert(ctx, cert); err != nil {
		if err == model.ErrDuplicateCertificate {
			// A concurrent evaluation issued first. Discard our PDF and
			// adopt the winner's certificate.
			if delErr := s.storage.SafeDelete(fileKey); delErr != nil {
				s.log.Warn().Err(delErr).Str("file_key", fileKey).Msg("Failed to delete orphaned certificate pdf")
			}
			winner, rereadErr := s.store.GetByResult(ctx, input.ResultID)
			if rereadErr != nil {
				return nil, InternalError("reread certificate", rereadErr)
			}
			if winner == nil {
				return nil, InternalError("reread certificate", err)
			}
			return s.summary(winner), nil
		}
		return nil, InternalError("insert certificate", err)
	}

	s.log.Info().
		Str("certificate_no", cert.CertificateNo).
		Str("result_id", input.ResultID.String()).
		Str("student_id", input.StudentID.String()).
		Msg("Certificate issued")

	return s.summary(cert), nil
}

// SummaryByResult returns the certificate summary for a result, or
// (nil, nil) when none was issued. Revoked certificates do not surface in
// evaluation responses.
func (s *CertificateService) SummaryByResult(ctx context.Context, resultID uuid.UUID) (*CertificateSummary, error) {
	cert, err := s.store.GetByResult(ctx, resultID)
	if err != nil {
		return nil, InternalError("lookup certificate", err)
	}
	if cert == nil || cert.Revoked {
		return nil, nil
	}
	return s.summary(cert), nil
}

// ListStudentCertificates returns the caller's certificates, newest first.
func (s *CertificateService) ListStudentCertificates(ctx context.Context, studentID uuid.UUID) ([]model.StudentCertificateRow, error) {
	certs, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, InternalError("list certificates", err)
	}

	rows := make([]model.StudentCertificateRow, 0, len(certs))
	for _, c := range certs {
		courseName, err := s.store.CourseName(ctx, c.CourseID)
		if err != nil {
			return nil, InternalError("lookup course", err)
		}
		rows = append(rows, model.StudentCertificateRow{
			CertificateID:   c.ID,
			CertificateNo:   c.CertificateNo,
			CourseName:      courseName,
			ScorePercentage: c.ScorePercentage,
			PassedAt:        c.PassedAt,
			IssuedAt:        c.IssuedAt,
			Revoked:         c.Revoked,
			DownloadURL:     s.BuildDownloadURL(c.ID),
			VerificationURL: s.BuildVerificationURL(c.CertificateNo, c.VerificationToken),
		})
	}
	return rows, nil
}

// StudentDownload resolves an owned certificate to its PDF path for
// serving. Revoked certificates cannot be downloaded.
func (s *CertificateService) StudentDownload(ctx context.Context, certificateID, studentID uuid.UUID) (string, string, error) {
	cert, err := s.store.GetOwned(ctx, certificateID, studentID)
	if err != nil {
		return "", "", InternalError("lookup certificate", err)
	}
	if cert == nil {
		return "", "", NotFoundError("certificate not found")
	}
	if cert.Revoked {
		return "", "", ConflictError("certificate has been revoked")
	}

	path, err := s.storage.ReadablePath(cert.FileKey)
	if err != nil {
		return "", "", InternalError("resolve certificate file", err)
	}
	return path, cert.CertificateNo + ".pdf", nil
}

// Verify answers the public QR verification query. The token is optional:
// verification by certificate number alone is valid, the token only adds a
// check when supplied. An unknown number, a wrong token or a revoked
// certificate all return the same bare invalid verdict rather than an
// error, so the endpoint leaks nothing about which part failed.
func (s *CertificateService) Verify(ctx context.Context, certificateNo, token string) (*CertificateVerification, error) {
	cert, studentName, courseName, err := s.store.GetByNumber(ctx, certificateNo)
	if err != nil {
		return nil, InternalError("lookup certificate", err)
	}
	if cert == nil || cert.Revoked || (token != "" && cert.VerificationToken != token) {
		return &CertificateVerification{Valid: false, CertificateNo: certificateNo}, nil
	}

	return &CertificateVerification{
		Valid:           true,
		CertificateNo:   cert.CertificateNo,
		StudentName:     studentName,
		CourseName:      courseName,
		ScorePercentage: cert.ScorePercentage,
		PassedAt:        &cert.PassedAt,
		IssuedAt:        &cert.IssuedAt,
	}, nil
}

// summary projects a certificate row into its response shape.
func (s *CertificateService) summary(c *model.Certificate) *CertificateSummary {
	return &CertificateSummary{
		CertificateID:   c.ID,
		CertificateNo:   c.CertificateNo,
		ScorePercentage: c.ScorePercentage,
		IssuedAt:        c.IssuedAt,
		DownloadURL:     s.BuildDownloadURL(c.ID),
		VerificationURL: s.BuildVerificationURL(c.CertificateNo, c.VerificationToken),
	}
}

// BuildDownloadURL builds the authenticated download link.
func (s *CertificateService) BuildDownloadURL(certificateID uuid.UUID) string {
	return fmt.Sprintf("%s/api/v1/student/certificates/%s/download", s.baseURL, certificateID)
}

// BuildVerificationURL builds the public verification link embedded in the
// certificate's QR code.
func (s *CertificateService) BuildVerificationURL(certificateNo, token string) string {
	return fmt.Sprintf("%s/verify/%s?token=%s", s.baseURL, certificateNo, token)
}

// buildCertificateNo derives the public certificate number:
// CERT-<yyyymm>-<COURSE6>-<RESULT8>. The course segment keeps the first six
// alphanumerics of the course code uppercased, padded with X; the result
// segment is the first eight hex digits of the result id.
func buildCertificateNo(resultID uuid.UUID, courseCode string, passedAt time.Time) string {
	var course strings.Builder
	for _, r := range strings.ToUpper(courseCode) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			course.WriteRune(r)
			if course.Len() == 6 {
				break
			}
		}
	}
	courseSeg := course.String()
	for len(courseSeg) < 6 {
		courseSeg += "X"
	}

	resultSeg := strings.ToUpper(strings.ReplaceAll(resultID.String(), "-", ""))[:8]

	return fmt.Sprintf("CERT-%s-%s-%s", passedAt.UTC().Format("200601"), courseSeg, resultSeg)
}

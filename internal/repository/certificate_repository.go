package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credentia/certportal-backend/internal/model"
)

const certificateColumns = `id, certificate_no, result_id, exam_id, student_id, course_id,
	faculty_id, score_percentage, passed_at, file_key, qr_payload,
	verification_token, issued_at, revoked, revoked_at`

// CertificateRepository persists issued certificates and resolves the
// display names certificates carry. The unique constraint on result_id is
// the issuance arbiter under concurrency.
type CertificateRepository struct {
	db *pgxpool.Pool
}

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(db *pgxpool.Pool) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func scanCertificate(row pgx.Row) (*model.Certificate, error) {
	var c model.Certificate
	err := row.Scan(&c.ID, &c.CertificateNo, &c.ResultID, &c.ExamID, &c.StudentID, &c.CourseID,
		&c.FacultyID, &c.ScorePercentage, &c.PassedAt, &c.FileKey, &c.QRPayload,
		&c.VerificationToken, &c.IssuedAt, &c.Revoked, &c.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByResult fetches the certificate of a result, (nil, nil) when none.
func (r *CertificateRepository) GetByResult(ctx context.Context, resultID uuid.UUID) (*model.Certificate, error) {
	cert, err := scanCertificate(r.db.QueryRow(ctx, `
		SELECT `+certificateColumns+`
		FROM certificates
		WHERE result_id = $1`, resultID))
	if err != nil {
		return nil, fmt.Errorf("get certificate by result: %w", err)
	}
	return cert, nil
}

// GetByNumber resolves a certificate by its public number together with the
// student and course display names for the verification page.
func (r *CertificateRepository) GetByNumber(ctx context.Context, certificateNo string) (*model.Certificate, string, string, error) {
	row := r.db.QueryRow(ctx, `
		SELECT c.id, c.certificate_no, c.result_id, c.exam_id, c.student_id, c.course_id,
		       c.faculty_id, c.score_percentage, c.passed_at, c.file_key, c.qr_payload,
		       c.verification_token, c.issued_at, c.revoked, c.revoked_at,
		       u.first_name, u.last_name, co.course_name
		FROM certificates c
		JOIN users u ON u.id = c.student_id
		JOIN courses co ON co.id = c.course_id
		WHERE c.certificate_no = $1`, certificateNo)

	var c model.Certificate
	var firstName, lastName, courseName string
	err := row.Scan(&c.ID, &c.CertificateNo, &c.ResultID, &c.ExamID, &c.StudentID, &c.CourseID,
		&c.FacultyID, &c.ScorePercentage, &c.PassedAt, &c.FileKey, &c.QRPayload,
		&c.VerificationToken, &c.IssuedAt, &c.Revoked, &c.RevokedAt,
		&firstName, &lastName, &courseName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", "", nil
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("get certificate by number: %w", err)
	}

	student := model.User{FirstName: firstName, LastName: lastName}
	return &c, student.FullName(), courseName, nil
}

// GetOwned fetches a certificate scoped to its owning student.
func (r *CertificateRepository) GetOwned(ctx context.Context, certificateID, studentID uuid.UUID) (*model.Certificate, error) {
	cert, err := scanCertificate(r.db.QueryRow(ctx, `
		SELECT `+certificateColumns+`
		FROM certificates
		WHERE id = $1 AND student_id = $2`, certificateID, studentID))
	if err != nil {
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return cert, nil
}

// Insert persists a new certificate. A unique violation on result_id maps
// to model.ErrDuplicateCertificate so the issuer can adopt the winner.
func (r *CertificateRepository) Insert(ctx context.Context, cert *model.Certificate) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO certificates
			(id, certificate_no, result_id, exam_id, student_id, course_id,
			 faculty_id, score_percentage, passed_at, file_key, qr_payload,
			 verification_token, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		cert.ID, cert.CertificateNo, cert.ResultID, cert.ExamID, cert.StudentID, cert.CourseID,
		cert.FacultyID, cert.ScorePercentage, cert.PassedAt, cert.FileKey, cert.QRPayload,
		cert.VerificationToken, cert.IssuedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrDuplicateCertificate
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// ListByStudent returns the student's certificates, newest first.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Certificate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+certificateColumns+`
		FROM certificates
		WHERE student_id = $1
		ORDER BY issued_at DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var certs []model.Certificate
	for rows.Next() {
		var c model.Certificate
		if err := rows.Scan(&c.ID, &c.CertificateNo, &c.ResultID, &c.ExamID, &c.StudentID, &c.CourseID,
			&c.FacultyID, &c.ScorePercentage, &c.PassedAt, &c.FileKey, &c.QRPayload,
			&c.VerificationToken, &c.IssuedAt, &c.Revoked, &c.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		certs = append(certs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return certs, nil
}

// CourseName resolves a course's display name.
func (r *CertificateRepository) CourseName(ctx context.Context, courseID uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `
		SELECT course_name FROM courses WHERE id = $1`, courseID).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("get course name: %w", err)
	}
	return name, nil
}

// CourseCode resolves the course code used in certificate numbering.
func (r *CertificateRepository) CourseCode(ctx context.Context, courseID uuid.UUID) (string, error) {
	var code string
	err := r.db.QueryRow(ctx, `
		SELECT course_code FROM courses WHERE id = $1`, courseID).Scan(&code)
	if err != nil {
		return "", fmt.Errorf("get course code: %w", err)
	}
	return code, nil
}

// UserFullName resolves a user's full display name. Certificates use it for
// both the student and the trainer.
func (r *CertificateRepository) UserFullName(ctx context.Context, userID uuid.UUID) (string, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
		SELECT first_name, last_name FROM users WHERE id = $1`, userID).Scan(&u.FirstName, &u.LastName)
	if err != nil {
		return "", fmt.Errorf("get user name: %w", err)
	}
	return u.FullName(), nil
}

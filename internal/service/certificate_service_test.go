package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credentia/certportal-backend/internal/model"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakeCertStore struct {
	byResult    map[uuid.UUID]*model.Certificate
	userNames   map[uuid.UUID]string
	courseNames map[uuid.UUID]string
	courseCodes map[uuid.UUID]string
}

func newFakeCertStore() *fakeCertStore {
	return &fakeCertStore{
		byResult:    make(map[uuid.UUID]*model.Certificate),
		userNames:   make(map[uuid.UUID]string),
		courseNames: make(map[uuid.UUID]string),
		courseCodes: make(map[uuid.UUID]string),
	}
}

func (f *fakeCertStore) GetByResult(_ context.Context, resultID uuid.UUID) (*model.Certificate, error) {
	if c, ok := f.byResult[resultID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCertStore) GetByNumber(_ context.Context, certificateNo string) (*model.Certificate, string, string, error) {
	for _, c := range f.byResult {
		if c.CertificateNo == certificateNo {
			cp := *c
			return &cp, f.userNames[c.StudentID], f.courseNames[c.CourseID], nil
		}
	}
	return nil, "", "", nil
}

func (f *fakeCertStore) GetOwned(_ context.Context, certificateID, studentID uuid.UUID) (*model.Certificate, error) {
	for _, c := range f.byResult {
		if c.ID == certificateID && c.StudentID == studentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCertStore) Insert(_ context.Context, cert *model.Certificate) error {
	if _, ok := f.byResult[cert.ResultID]; ok {
		return model.ErrDuplicateCertificate
	}
	cp := *cert
	f.byResult[cert.ResultID] = &cp
	return nil
}

func (f *fakeCertStore) ListByStudent(_ context.Context, studentID uuid.UUID) ([]model.Certificate, error) {
	var out []model.Certificate
	for _, c := range f.byResult {
		if c.StudentID == studentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCertStore) CourseName(_ context.Context, courseID uuid.UUID) (string, error) {
	return f.courseNames[courseID], nil
}

func (f *fakeCertStore) CourseCode(_ context.Context, courseID uuid.UUID) (string, error) {
	return f.courseCodes[courseID], nil
}

func (f *fakeCertStore) UserFullName(_ context.Context, userID uuid.UUID) (string, error) {
	return f.userNames[userID], nil
}

type fakeRenderer struct {
	renders []CertificatePDFData
}

func (f *fakeRenderer) Render(data CertificatePDFData) ([]byte, error) {
	f.renders = append(f.renders, data)
	return []byte("%PDF-1.7 fake"), nil
}

type fakeCertStorage struct {
	saved   map[string][]byte
	deleted []string
}

func newFakeCertStorage() *fakeCertStorage {
	return &fakeCertStorage{saved: make(map[string][]byte)}
}

func (f *fakeCertStorage) Save(certificateNo string, pdf []byte) (string, error) {
	key := certificateNo + ".pdf"
	f.saved[key] = pdf
	return key, nil
}

func (f *fakeCertStorage) SafeDelete(fileKey string) error {
	f.deleted = append(f.deleted, fileKey)
	delete(f.saved, fileKey)
	return nil
}

func (f *fakeCertStorage) ReadablePath(fileKey string) (string, error) {
	return "/var/certificates/" + fileKey, nil
}

// ─── Fixture ────────────────────────────────────────────────────────────────

type certFixture struct {
	svc      *CertificateService
	store    *fakeCertStore
	renderer *fakeRenderer
	storage  *fakeCertStorage
	input    CertificateIssueInput
}

func newCertFixture(t *testing.T) *certFixture {
	t.Helper()

	store := newFakeCertStore()
	renderer := &fakeRenderer{}
	storage := newFakeCertStorage()

	studentID := uuid.New()
	facultyID := uuid.New()
	courseID := uuid.New()
	store.userNames[studentID] = "Ava Morales"
	store.userNames[facultyID] = "Noel Chandra"
	store.courseNames[courseID] = "Cloud Security 101"
	store.courseCodes[courseID] = "CS101"

	issued := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := NewCertificateService(store, renderer, storage, "https://portal.example.edu/", zerolog.Nop()).
		WithClock(func() time.Time { return issued })

	return &certFixture{
		svc:      svc,
		store:    store,
		renderer: renderer,
		storage:  storage,
		input: CertificateIssueInput{
			ResultID:        uuid.MustParse("deadbeef-1111-2222-3333-444455556666"),
			ExamID:          uuid.New(),
			StudentID:       studentID,
			CourseID:        courseID,
			FacultyID:       &facultyID,
			ScorePercentage: 88.5,
			PassedAt:        time.Date(2026, 3, 15, 11, 45, 0, 0, time.UTC),
		},
	}
}

// ─── IssueIfEligible ────────────────────────────────────────────────────────

func TestIssueIfEligibleBelowBar(t *testing.T) {
	fx := newCertFixture(t)
	fx.input.ScorePercentage = 74.99

	summary, err := fx.svc.IssueIfEligible(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("IssueIfEligible: %v", err)
	}
	if summary != nil {
		t.Fatalf("summary = %+v, want nil below 75%%", summary)
	}
	if len(fx.renderer.renders) != 0 {
		t.Error("renderer must not run for ineligible scores")
	}
}

func TestIssueIfEligible(t *testing.T) {
	fx := newCertFixture(t)

	summary, err := fx.svc.IssueIfEligible(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("IssueIfEligible: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a certificate at 88.5%")
	}

	// CERT-<yyyymm>-<COURSE6>-<RESULT8>: course code CS101 padded to
	// CS101X, result id deadbeef… → DEADBEEF.
	if summary.CertificateNo != "CERT-202603-CS101X-DEADBEEF" {
		t.Errorf("CertificateNo = %s, want CERT-202603-CS101X-DEADBEEF", summary.CertificateNo)
	}
	if summary.ScorePercentage != 88.5 {
		t.Errorf("ScorePercentage = %v, want 88.5", summary.ScorePercentage)
	}
	if !summary.IssuedAt.Equal(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("IssuedAt = %v", summary.IssuedAt)
	}
	if summary.DownloadURL != "https://portal.example.edu/api/v1/student/certificates/"+summary.CertificateID.String()+"/download" {
		t.Errorf("DownloadURL = %s", summary.DownloadURL)
	}
	if !strings.HasPrefix(summary.VerificationURL, "https://portal.example.edu/verify/CERT-202603-CS101X-DEADBEEF?token=") {
		t.Errorf("VerificationURL = %s", summary.VerificationURL)
	}

	stored := fx.store.byResult[fx.input.ResultID]
	if stored == nil {
		t.Fatal("certificate row not persisted")
	}
	if stored.VerificationToken == "" || strings.Contains(stored.VerificationToken, "-") {
		t.Errorf("VerificationToken = %q, want dashless non-empty token", stored.VerificationToken)
	}
	if stored.QRPayload != fx.svc.BuildVerificationURL(stored.CertificateNo, stored.VerificationToken) {
		t.Errorf("QRPayload = %s", stored.QRPayload)
	}
	if _, ok := fx.storage.saved[stored.FileKey]; !ok {
		t.Errorf("no PDF stored under file key %q", stored.FileKey)
	}

	if len(fx.renderer.renders) != 1 {
		t.Fatalf("renderer ran %d times, want 1", len(fx.renderer.renders))
	}
	rendered := fx.renderer.renders[0]
	if rendered.StudentName != "Ava Morales" || rendered.CourseName != "Cloud Security 101" {
		t.Errorf("rendered names = %q / %q", rendered.StudentName, rendered.CourseName)
	}
	if rendered.TrainerName != "Noel Chandra" {
		t.Errorf("TrainerName = %q, want faculty name", rendered.TrainerName)
	}
	if !rendered.IssuedAt.Equal(stored.IssuedAt) {
		t.Errorf("rendered IssuedAt = %v, want %v", rendered.IssuedAt, stored.IssuedAt)
	}
	if rendered.VerificationURL != stored.QRPayload {
		t.Error("rendered QR link differs from stored payload")
	}
}

func TestIssueIfEligibleDefaultTrainer(t *testing.T) {
	fx := newCertFixture(t)
	fx.input.FacultyID = nil

	if _, err := fx.svc.IssueIfEligible(context.Background(), fx.input); err != nil {
		t.Fatalf("IssueIfEligible: %v", err)
	}
	if len(fx.renderer.renders) != 1 {
		t.Fatalf("renderer ran %d times, want 1", len(fx.renderer.renders))
	}
	if got := fx.renderer.renders[0].TrainerName; got != DefaultTrainerName {
		t.Errorf("TrainerName = %q, want %q", got, DefaultTrainerName)
	}
}

func TestIssueIfEligibleIdempotent(t *testing.T) {
	fx := newCertFixture(t)

	first, err := fx.svc.IssueIfEligible(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("first IssueIfEligible: %v", err)
	}

	second, err := fx.svc.IssueIfEligible(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("second IssueIfEligible: %v", err)
	}

	if second.CertificateID != first.CertificateID {
		t.Errorf("repeat issued a new certificate: %s vs %s", second.CertificateID, first.CertificateID)
	}
	if len(fx.renderer.renders) != 1 {
		t.Errorf("renderer ran %d times, want 1", len(fx.renderer.renders))
	}
}

func TestIssueIfEligibleLosesInsertRace(t *testing.T) {
	fx := newCertFixture(t)

	winner := &model.Certificate{
		ID:            uuid.New(),
		CertificateNo: "CERT-202603-CS101X-DEADBEEF",
		ResultID:      fx.input.ResultID,
		StudentID:     fx.input.StudentID,
		CourseID:      fx.input.CourseID,
	}
	winner.FileKey = winner.CertificateNo + "-" + winner.ID.String() + ".pdf"

	// The winner's row lands between our lookup and insert. Drop it in
	// while the PDF renders, so the insert hits the result_id constraint.
	fx.svc.renderer = renderFunc(func(CertificatePDFData) ([]byte, error) {
		fx.store.byResult[fx.input.ResultID] = winner
		return []byte("pdf"), nil
	})

	summary, err := fx.svc.IssueIfEligible(context.Background(), fx.input)
	if err != nil {
		t.Fatalf("IssueIfEligible: %v", err)
	}

	if summary.CertificateID != winner.ID {
		t.Errorf("loser did not adopt winner: got %s, want %s", summary.CertificateID, winner.ID)
	}
	if len(fx.storage.deleted) != 1 {
		t.Fatalf("orphaned PDF deletions = %d, want 1", len(fx.storage.deleted))
	}
	if fx.storage.deleted[0] == winner.FileKey {
		t.Error("deleted the winner's PDF instead of the loser's")
	}
}

type renderFunc func(data CertificatePDFData) ([]byte, error)

func (f renderFunc) Render(data CertificatePDFData) ([]byte, error) { return f(data) }

// ─── Verify ─────────────────────────────────────────────────────────────────

func issueOne(t *testing.T, fx *certFixture) *model.Certificate {
	t.Helper()
	if _, err := fx.svc.IssueIfEligible(context.Background(), fx.input); err != nil {
		t.Fatalf("IssueIfEligible: %v", err)
	}
	return fx.store.byResult[fx.input.ResultID]
}

func TestVerify(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)

	v, err := fx.svc.Verify(context.Background(), cert.CertificateNo, cert.VerificationToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !v.Valid {
		t.Fatal("expected valid verdict")
	}
	if v.StudentName != "Ava Morales" || v.CourseName != "Cloud Security 101" {
		t.Errorf("names = %q / %q", v.StudentName, v.CourseName)
	}
	if v.ScorePercentage != 88.5 {
		t.Errorf("ScorePercentage = %v, want 88.5", v.ScorePercentage)
	}
}

func TestVerifyByNumberAlone(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)

	// The token is optional: looking up by certificate number only, as
	// typed from the printed document, still verifies.
	v, err := fx.svc.Verify(context.Background(), cert.CertificateNo, "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.Valid {
		t.Fatal("expected valid verdict without a token")
	}
	if v.StudentName != "Ava Morales" {
		t.Errorf("StudentName = %q", v.StudentName)
	}
}

func TestVerifyRejectsWithoutLeaking(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)

	tests := []struct {
		name          string
		certificateNo string
		token         string
	}{
		{"unknown certificate number", "CERT-209901-XXXXXX-00000000", cert.VerificationToken},
		{"wrong token", cert.CertificateNo, "not-the-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := fx.svc.Verify(context.Background(), tt.certificateNo, tt.token)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if v.Valid {
				t.Error("expected invalid verdict")
			}
			// An invalid verdict must not expose holder details.
			if v.StudentName != "" || v.CourseName != "" {
				t.Errorf("leaked details: %q / %q", v.StudentName, v.CourseName)
			}
		})
	}
}

func TestVerifyRevoked(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)
	revokedAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	cert.Revoked = true
	cert.RevokedAt = &revokedAt

	v, err := fx.svc.Verify(context.Background(), cert.CertificateNo, cert.VerificationToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if v.Valid {
		t.Error("revoked certificate must not verify as valid")
	}
	// A revoked certificate gets the same bare invalid verdict as an
	// unknown one.
	if v.StudentName != "" || v.CourseName != "" || v.PassedAt != nil || v.IssuedAt != nil {
		t.Errorf("leaked details for revoked certificate: %+v", v)
	}
}

func TestSummaryByResultSkipsRevoked(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)
	cert.Revoked = true

	summary, err := fx.svc.SummaryByResult(context.Background(), fx.input.ResultID)
	if err != nil {
		t.Fatalf("SummaryByResult: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil for a revoked certificate", summary)
	}
}

// ─── Download and listing ───────────────────────────────────────────────────

func TestStudentDownload(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)

	path, filename, err := fx.svc.StudentDownload(context.Background(), cert.ID, cert.StudentID)
	if err != nil {
		t.Fatalf("StudentDownload: %v", err)
	}
	if path != "/var/certificates/"+cert.FileKey {
		t.Errorf("path = %s", path)
	}
	if filename != cert.CertificateNo+".pdf" {
		t.Errorf("filename = %s, want %s.pdf", filename, cert.CertificateNo)
	}
}

func TestStudentDownloadRevoked(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)
	cert.Revoked = true

	_, _, err := fx.svc.StudentDownload(context.Background(), cert.ID, cert.StudentID)
	if KindOf(err) != KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestStudentDownloadForeignCertificate(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)

	_, _, err := fx.svc.StudentDownload(context.Background(), cert.ID, uuid.New())
	if KindOf(err) != KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListStudentCertificates(t *testing.T) {
	fx := newCertFixture(t)
	cert := issueOne(t, fx)

	rows, err := fx.svc.ListStudentCertificates(context.Background(), cert.StudentID)
	if err != nil {
		t.Fatalf("ListStudentCertificates: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].CourseName != "Cloud Security 101" {
		t.Errorf("CourseName = %s", rows[0].CourseName)
	}
	if rows[0].DownloadURL != fx.svc.BuildDownloadURL(cert.ID) {
		t.Errorf("DownloadURL = %s", rows[0].DownloadURL)
	}
}

// ─── Certificate number derivation ──────────────────────────────────────────

func TestBuildCertificateNo(t *testing.T) {
	resultID := uuid.MustParse("0a1b2c3d-0000-0000-0000-000000000000")
	passedAt := time.Date(2026, 11, 30, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name       string
		courseCode string
		want       string
	}{
		{"long course code truncated", "ADVDBSYS", "CERT-202611-ADVDBS-0A1B2C3D"},
		{"short course code padded", "GO", "CERT-202611-GOXXXX-0A1B2C3D"},
		{"lowercase normalized", "cs101", "CERT-202611-CS101X-0A1B2C3D"},
		{"non alphanumerics skipped", "ML-101.2", "CERT-202611-ML1012-0A1B2C3D"},
		{"empty course code all padding", "", "CERT-202611-XXXXXX-0A1B2C3D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildCertificateNo(resultID, tt.courseCode, passedAt); got != tt.want {
				t.Errorf("buildCertificateNo = %s, want %s", got, tt.want)
			}
		})
	}
}

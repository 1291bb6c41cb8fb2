package model

import (
	"time"

	"github.com/google/uuid"
)

// Course is a read-only catalog projection; CRUD lives with the catalog
// collaborator. CourseCode feeds certificate numbering.
type Course struct {
	ID         uuid.UUID `json:"id"`
	CourseCode string    `json:"course_code"`
	CourseName string    `json:"course_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnrollmentStatus enumerates batch enrollment states.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
)

// StudentEnrollment ties a student to a batch. Only ACTIVE or COMPLETED
// enrollments may attempt the batch's exams.
type StudentEnrollment struct {
	ID        uuid.UUID        `json:"id"`
	StudentID uuid.UUID        `json:"student_id"`
	BatchID   uuid.UUID        `json:"batch_id"`
	Status    EnrollmentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

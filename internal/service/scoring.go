package service

import (
	"math"

	"github.com/google/uuid"
)

// PassPercentage is the score percentage at or above which an attempt passes.
const PassPercentage = 70.0

// scoreEpsilon counters binary floating-point truncation before half-up
// rounding, so 2.675 rounds to 2.68 rather than 2.67.
const scoreEpsilon = 1e-9

// QuestionKey is the per-question grading input: its weight and the id of
// its correct option. CorrectOptionID is uuid.Nil when the stored question
// has no correct option registered; such a question can never be answered
// correctly. Option integrity is enforced at creation time, not here.
type QuestionKey struct {
	QuestionID      uuid.UUID
	Marks           float64
	CorrectOptionID uuid.UUID
}

// Score is the computed outcome of grading one attempt.
type Score struct {
	TotalQuestions  int
	CorrectAnswers  int
	WrongAnswers    int
	Unanswered      int
	MarksObtained   float64
	MaxMarks        float64
	ScorePercentage float64
	Passed          bool
}

// ScoreAttempt grades a set of submitted answers against the question key.
// selected maps question id to the chosen option id; absent entries count
// as unanswered. examTotalMarks is the exam's configured total; when it is
// not positive the per-question sum is used instead.
func ScoreAttempt(questions []QuestionKey, selected map[uuid.UUID]uuid.UUID, examTotalMarks float64) (Score, error) {
	if len(questions) == 0 {
		return Score{}, BadRequestError("cannot evaluate exam without questions")
	}

	var s Score
	s.TotalQuestions = len(questions)

	var marksObtained, questionMarksSum float64
	for _, q := range questions {
		questionMarksSum += q.Marks

		chosen, answered := selected[q.QuestionID]
		if !answered || chosen == uuid.Nil {
			s.Unanswered++
			continue
		}

		if q.CorrectOptionID != uuid.Nil && chosen == q.CorrectOptionID {
			s.CorrectAnswers++
			marksObtained += q.Marks
		} else {
			s.WrongAnswers++
		}
	}

	maxMarks := examTotalMarks
	if maxMarks <= 0 {
		maxMarks = questionMarksSum
	}

	s.MarksObtained = Round2(marksObtained)
	s.MaxMarks = Round2(maxMarks)
	if s.MaxMarks > 0 {
		s.ScorePercentage = Round2(s.MarksObtained * 100 / s.MaxMarks)
	}
	s.Passed = s.ScorePercentage >= PassPercentage

	return s, nil
}

// Round2 rounds half-up to two decimal places.
func Round2(v float64) float64 {
	return math.Round((v+scoreEpsilon)*100) / 100
}

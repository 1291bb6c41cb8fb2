package service

import (
	"testing"

	"github.com/google/uuid"
)

type keyedExam struct {
	keys    []QuestionKey
	options map[int]uuid.UUID // question index → correct option id
}

func buildKeys(t *testing.T, marks []float64) keyedExam {
	t.Helper()
	exam := keyedExam{options: make(map[int]uuid.UUID)}
	for i, m := range marks {
		correct := uuid.New()
		exam.options[i] = correct
		exam.keys = append(exam.keys, QuestionKey{
			QuestionID:      uuid.New(),
			Marks:           m,
			CorrectOptionID: correct,
		})
	}
	return exam
}

// answer builds a selection map answering the first `correct` questions
// correctly and the next `wrong` questions incorrectly.
func (e keyedExam) answer(correct, wrong int) map[uuid.UUID]uuid.UUID {
	selected := make(map[uuid.UUID]uuid.UUID)
	for i := 0; i < correct; i++ {
		selected[e.keys[i].QuestionID] = e.options[i]
	}
	for i := correct; i < correct+wrong; i++ {
		selected[e.keys[i].QuestionID] = uuid.New() // some other option
	}
	return selected
}

func TestScoreAttempt(t *testing.T) {
	tests := []struct {
		name        string
		marks       []float64
		correct     int
		wrong       int
		totalMarks  float64
		wantScore   float64
		wantPassed  bool
		wantCorrect int
		wantWrong   int
		wantBlank   int
	}{
		{
			name:  "three of four correct passes at 75",
			marks: []float64{25, 25, 25, 25}, correct: 3, wrong: 1, totalMarks: 100,
			wantScore: 75, wantPassed: true, wantCorrect: 3, wantWrong: 1,
		},
		{
			name:  "two of four correct fails at 50",
			marks: []float64{25, 25, 25, 25}, correct: 2, wrong: 2, totalMarks: 100,
			wantScore: 50, wantPassed: false, wantCorrect: 2, wantWrong: 2,
		},
		{
			name:  "exact pass boundary",
			marks: []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10}, correct: 7, wrong: 3, totalMarks: 100,
			wantScore: 70, wantPassed: true, wantCorrect: 7, wantWrong: 3,
		},
		{
			name:  "unanswered questions counted separately",
			marks: []float64{25, 25, 25, 25}, correct: 2, wrong: 1, totalMarks: 100,
			wantScore: 50, wantPassed: false, wantCorrect: 2, wantWrong: 1, wantBlank: 1,
		},
		{
			name:  "all unanswered scores zero",
			marks: []float64{25, 25, 25, 25}, correct: 0, wrong: 0, totalMarks: 100,
			wantScore: 0, wantPassed: false, wantBlank: 4,
		},
		{
			name:  "zero total marks falls back to question sum",
			marks: []float64{5, 5, 10}, correct: 3, wrong: 0, totalMarks: 0,
			wantScore: 100, wantPassed: true, wantCorrect: 3,
		},
		{
			name:  "uneven weights round to two decimals",
			marks: []float64{1, 1, 1}, correct: 2, wrong: 1, totalMarks: 3,
			wantScore: 66.67, wantPassed: false, wantCorrect: 2, wantWrong: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := buildKeys(t, tt.marks)
			score, err := ScoreAttempt(exam.keys, exam.answer(tt.correct, tt.wrong), tt.totalMarks)
			if err != nil {
				t.Fatalf("ScoreAttempt: %v", err)
			}

			if score.ScorePercentage != tt.wantScore {
				t.Errorf("ScorePercentage = %v, want %v", score.ScorePercentage, tt.wantScore)
			}
			if score.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", score.Passed, tt.wantPassed)
			}
			if score.CorrectAnswers != tt.wantCorrect {
				t.Errorf("CorrectAnswers = %d, want %d", score.CorrectAnswers, tt.wantCorrect)
			}
			if score.WrongAnswers != tt.wantWrong {
				t.Errorf("WrongAnswers = %d, want %d", score.WrongAnswers, tt.wantWrong)
			}
			if score.Unanswered != tt.wantBlank {
				t.Errorf("Unanswered = %d, want %d", score.Unanswered, tt.wantBlank)
			}
			if score.TotalQuestions != len(tt.marks) {
				t.Errorf("TotalQuestions = %d, want %d", score.TotalQuestions, len(tt.marks))
			}
		})
	}
}

func TestScoreAttemptNoQuestions(t *testing.T) {
	_, err := ScoreAttempt(nil, nil, 100)
	if err == nil {
		t.Fatal("expected error for empty question set")
	}
	if KindOf(err) != KindBadRequest {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindBadRequest)
	}
}

func TestScoreAttemptMissingCorrectOption(t *testing.T) {
	// A question whose key has no correct option can never be correct,
	// even when the student selected something.
	q := QuestionKey{QuestionID: uuid.New(), Marks: 10, CorrectOptionID: uuid.Nil}
	selected := map[uuid.UUID]uuid.UUID{q.QuestionID: uuid.New()}

	score, err := ScoreAttempt([]QuestionKey{q}, selected, 10)
	if err != nil {
		t.Fatalf("ScoreAttempt: %v", err)
	}
	if score.CorrectAnswers != 0 || score.WrongAnswers != 1 {
		t.Errorf("got correct=%d wrong=%d, want 0/1", score.CorrectAnswers, score.WrongAnswers)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{2.675, 2.68}, // binary truncation would give 2.67 without epsilon
		{66.666666, 66.67},
		{50.0, 50.0},
		{0.005, 0.01},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

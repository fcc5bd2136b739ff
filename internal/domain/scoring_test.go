package domain

import (
	"math"
	"testing"
	"time"
)

func mcq(marks, negative float64, correct int64) *Question {
	return &Question{Type: SingleChoice, Marks: marks, NegativeMarks: negative, CorrectOptions: []int64{correct}}
}

func msq(marks float64, correct ...int64) *Question {
	return &Question{Type: MultiChoice, Marks: marks, CorrectOptions: correct}
}

func TestScoreSingleChoice(t *testing.T) {
	q := mcq(4, 1, 11)

	if got := Score(q, []int64{11}); got != 4 {
		t.Fatalf("correct answer: expected 4, got %v", got)
	}
	if got := Score(q, []int64{12}); got != -1 {
		t.Fatalf("wrong answer: expected -1, got %v", got)
	}
	if got := Score(q, nil); got != 0 {
		t.Fatalf("empty selection: expected 0, got %v", got)
	}
	// Selecting several options can never match the single answer.
	if got := Score(q, []int64{11, 12}); got != -1 {
		t.Fatalf("multi-selection on MCQ: expected -1, got %v", got)
	}
}

func TestScoreSingleChoiceWithoutPenalty(t *testing.T) {
	q := mcq(2, 0, 11)
	if got := Score(q, []int64{12}); got != 0 {
		t.Fatalf("expected 0 when no negative marks configured, got %v", got)
	}
}

func TestScoreSingleChoiceMalformedCorrectSet(t *testing.T) {
	q := &Question{Type: SingleChoice, Marks: 4, CorrectOptions: []int64{1, 2}}
	if got := Score(q, []int64{1}); got != 0 {
		t.Fatalf("expected 0 for malformed correct set, got %v", got)
	}
}

func TestScoreMultiChoice(t *testing.T) {
	q := msq(6, 21, 22, 23)

	if got := Score(q, []int64{21, 22, 23}); got != 6 {
		t.Fatalf("full match: expected 6, got %v", got)
	}
	if got := Score(q, []int64{21, 22}); got != 4 {
		t.Fatalf("partial match 2/3: expected 4, got %v", got)
	}
	if got := Score(q, []int64{21}); got != 2 {
		t.Fatalf("partial match 1/3: expected 2, got %v", got)
	}
	// Any wrong option voids the whole question.
	if got := Score(q, []int64{21, 22, 99}); got != 0 {
		t.Fatalf("wrong option voids: expected 0, got %v", got)
	}
	if got := Score(q, nil); got != 0 {
		t.Fatalf("empty selection: expected 0, got %v", got)
	}
}

func TestScoreMultiChoiceDuplicatesCountOnce(t *testing.T) {
	q := msq(6, 21, 22, 23)
	if got := Score(q, []int64{21, 21, 22}); got != 4 {
		t.Fatalf("duplicates: expected 4, got %v", got)
	}
}

func TestScoreMultiChoiceEmptyCorrectSet(t *testing.T) {
	q := msq(6)
	if got := Score(q, []int64{21}); got != 0 {
		t.Fatalf("degenerate correct set: expected 0, got %v", got)
	}
}

func TestScoreNeverExceedsBounds(t *testing.T) {
	q := msq(5, 1, 2, 3, 4)
	for _, selected := range [][]int64{{1}, {1, 2}, {1, 2, 3}, {1, 2, 3, 4}} {
		got := Score(q, selected)
		if got < 0 || got > q.Marks {
			t.Fatalf("score %v out of [0, %v] for selection %v", got, q.Marks, selected)
		}
	}
}

func TestScoreWorkedExample(t *testing.T) {
	// MCQ worth 4 with a 1-mark penalty, answered wrong; MSQ worth 6 with
	// three correct options, two of them selected.
	q1 := mcq(4, 1, 101)
	q2 := msq(6, 201, 202, 203)

	total := Score(q1, []int64{102}) + Score(q2, []int64{201, 202})
	if total != 3 {
		t.Fatalf("expected combined score 3, got %v", total)
	}
}

func TestQuizTotalMarks(t *testing.T) {
	quiz := &Quiz{Questions: []*Question{{Marks: 4}, {Marks: 6}}}
	if got := quiz.TotalMarks(); got != 10 {
		t.Fatalf("expected total 10, got %v", got)
	}
	quiz.Questions[0].Marks = 5
	if got := quiz.TotalMarks(); got != 11 {
		t.Fatalf("expected total to track question edit, got %v", got)
	}
	empty := &Quiz{}
	if got := empty.TotalMarks(); got != 0 {
		t.Fatalf("expected 0 for empty quiz, got %v", got)
	}
}

func TestAvailableAtBoundsInclusive(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	quiz := &Quiz{StartTime: start, EndTime: end}

	if !quiz.AvailableAt(start) {
		t.Fatalf("start bound should be inclusive")
	}
	if !quiz.AvailableAt(end) {
		t.Fatalf("end bound should be inclusive")
	}
	if quiz.AvailableAt(start.Add(-time.Second)) {
		t.Fatalf("before start should be closed")
	}
	if quiz.AvailableAt(end.Add(time.Second)) {
		t.Fatalf("after end should be closed")
	}
	// Zone conversions must not shift the window.
	est := time.FixedZone("EST", -5*3600)
	if !quiz.AvailableAt(start.In(est)) {
		t.Fatalf("same instant in another zone should be open")
	}
}

func TestScoreIsPure(t *testing.T) {
	q := msq(6, 1, 2, 3)
	selected := []int64{1, 2}
	first := Score(q, selected)
	second := Score(q, selected)
	if math.Abs(first-second) > 1e-12 {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
	if len(q.CorrectOptions) != 3 || len(selected) != 2 {
		t.Fatalf("inputs were mutated")
	}
}

package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// QuestionType distinguishes single-choice from multi-select questions.
type QuestionType string

const (
	// SingleChoice questions have exactly one correct option.
	SingleChoice QuestionType = "MCQ"
	// MultiChoice questions have a set of correct options and award
	// proportional partial credit.
	MultiChoice QuestionType = "MSQ"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account known to the service. Role is either "admin" or "user".
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	FullName      string     `bun:"full_name,notnull" json:"fullName"`
	Qualification string     `bun:"qualification" json:"qualification,omitempty"`
	DOB           *time.Time `bun:"dob" json:"dob,omitempty"`
	Role          string     `bun:"role,notnull,default:'user'" json:"role"`
}

// Subject groups chapters and quizzes under a curriculum area.
type Subject struct {
	bun.BaseModel `bun:"table:subjects,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Code        string    `bun:"code,notnull,unique" json:"code"`
	Description string    `bun:"description" json:"description,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`

	Chapters []*Chapter `bun:"rel:has-many,join:id=subject_id" json:"chapters,omitempty"`
}

// Chapter is a unit within a subject. Quizzes reference chapters many-to-many.
type Chapter struct {
	bun.BaseModel `bun:"table:chapters,alias:c"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Code        string    `bun:"code,notnull,unique" json:"code"`
	Description string    `bun:"description" json:"description,omitempty"`
	SubjectID   int64     `bun:"subject_id,notnull" json:"subjectId"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// QuizChapter is the join row linking quizzes to chapters.
type QuizChapter struct {
	bun.BaseModel `bun:"table:quiz_chapters,alias:qc"`

	QuizID    int64    `bun:"quiz_id,pk" json:"quizId"`
	Quiz      *Quiz    `bun:"rel:belongs-to,join:quiz_id=id" json:"-"`
	ChapterID int64    `bun:"chapter_id,pk" json:"chapterId"`
	Chapter   *Chapter `bun:"rel:belongs-to,join:chapter_id=id" json:"-"`
}

// Quiz is a scheduled assessment. TotalMarks is always derived from the
// question list, never stored.
type Quiz struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	Title            string     `bun:"title,notnull" json:"title"`
	Description      string     `bun:"description" json:"description,omitempty"`
	SubjectID        int64      `bun:"subject_id,notnull" json:"subjectId"`
	TimeLimitMinutes *int       `bun:"time_limit_minutes" json:"timeLimitMinutes,omitempty"` // nil means unlimited
	StartTime        time.Time  `bun:"start_time,notnull" json:"startTime"`
	EndTime          time.Time  `bun:"end_time,notnull" json:"endTime"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt        *time.Time `bun:"updated_at" json:"updatedAt,omitempty"`

	Chapters  []*Chapter  `bun:"m2m:quiz_chapters,join:Quiz=Chapter" json:"chapters,omitempty"`
	Questions []*Question `bun:"rel:has-many,join:id=quiz_id" json:"questions,omitempty"`
}

// TotalMarks sums the marks of all loaded questions. Editing a question's
// marks changes the quiz total with no extra bookkeeping.
func (q *Quiz) TotalMarks() float64 {
	var total float64
	for _, question := range q.Questions {
		total += question.Marks
	}
	return total
}

// AvailableAt reports whether now falls inside the [start, end] window.
// Both bounds are inclusive and all timestamps are compared in UTC; a
// stored timestamp without zone information is taken as UTC.
func (q *Quiz) AvailableAt(now time.Time) bool {
	nowUTC := now.UTC()
	return !nowUTC.Before(q.StartTime.UTC()) && !nowUTC.After(q.EndTime.UTC())
}

// Question belongs to a quiz. CorrectOptions holds option IDs: exactly one
// for MCQ, a set for MSQ, always a subset of the question's own options.
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID             int64        `bun:"id,pk,autoincrement" json:"id"`
	QuizID         int64        `bun:"quiz_id,notnull" json:"quizId"`
	Text           string       `bun:"text,notnull" json:"text"`
	Marks          float64      `bun:"marks,notnull" json:"marks"`
	NegativeMarks  float64      `bun:"negative_marks,notnull,default:0" json:"negativeMarks"`
	Type           QuestionType `bun:"question_type,notnull,default:'MCQ'" json:"questionType"`
	CorrectOptions []int64      `bun:"correct_options,type:jsonb" json:"correctOptions,omitempty"`

	Options []*Option `bun:"rel:has-many,join:id=question_id" json:"options,omitempty"`
}

// Option is a possible answer. IDs are assigned by the store at creation.
type Option struct {
	bun.BaseModel `bun:"table:options,alias:o"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id"`
	QuestionID int64  `bun:"question_id,notnull" json:"questionId"`
	Text       string `bun:"text,notnull" json:"text"`
}

// Attempt is one user's single recorded try at one quiz. At most one row
// exists per (user, quiz); SubmittedAt marks the terminal state.
type Attempt struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID          int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID      int64      `bun:"user_id,notnull" json:"userId"`
	QuizID      int64      `bun:"quiz_id,notnull" json:"quizId"`
	Score       float64    `bun:"score,notnull,default:0" json:"score"`
	SubmittedAt *time.Time `bun:"submitted_at" json:"submittedAt,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Submitted reports whether the attempt has reached its terminal state.
func (a *Attempt) Submitted() bool {
	return a.SubmittedAt != nil
}

// LeaderboardEntry is one row of a quiz leaderboard.
type LeaderboardEntry struct {
	UserID   int64   `json:"userId"`
	FullName string  `json:"fullName"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// Leaderboard captures the ordered scoreboard for a quiz.
type Leaderboard struct {
	QuizID    int64              `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SubjectAverage is a per-subject mean of a user's raw scores.
type SubjectAverage struct {
	Subject  string  `json:"subject"`
	AvgScore float64 `json:"avgScore"`
}

// MonthlyCount is the number of attempts in one calendar month (YYYY-MM).
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// QuizPopularity counts attempts per quiz across all users.
type QuizPopularity struct {
	QuizID   int64  `json:"quizId"`
	Title    string `json:"title"`
	Attempts int    `json:"attempts"`
}

// SubjectPercent is the per-subject average of score/total_marks across
// all attempts; quizzes with zero total marks are excluded.
type SubjectPercent struct {
	Subject    string  `json:"subject"`
	AvgPercent float64 `json:"avgScore"`
}

// SiteStats are the admin dashboard entity counts.
type SiteStats struct {
	TotalQuizzes   int `json:"totalQuizzes"`
	TotalQuestions int `json:"totalQuestions"`
	TotalChapters  int `json:"totalChapters"`
	TotalSubjects  int `json:"totalSubjects"`
	TotalUsers     int `json:"totalUsers"`
}

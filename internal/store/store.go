package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"regai/internal/grading"
)

// Assignment is a graded task with its approved rubric.
type Assignment struct {
	ID          string
	Title       string
	Description string
	Rubric      grading.Rubric
	CreatedAt   time.Time
}

// Submission is immutable student content plus grading lifecycle status.
type Submission struct {
	ID           string
	AssignmentID string
	StudentName  string
	Content      string
	Status       string // queued | grading | graded | error
	OverallScore sql.NullFloat64
	SubmittedAt  time.Time
	GradedAt     sql.NullTime
}

// Submission statuses.
const (
	StatusQueued  = "queued"
	StatusGrading = "grading"
	StatusGraded  = "graded"
	StatusError   = "error"
)

// Grade is one complete set of per-category judgments. Grades are append-only:
// revision creates a new row, and promoting type to "final" is the only mutation.
type Grade struct {
	ID            string
	AssignmentID  string
	SubmissionID  string
	Type          grading.GradeType
	Content       grading.GradeContent
	HumanApproved bool
	ApprovedBy    sql.NullString
	ApprovedAt    sql.NullTime
	CreatedAt     time.Time
}

// Critique is an evaluative review bound to exactly one grade.
type Critique struct {
	ID             string
	AssignmentID   string
	SubmissionID   string
	GradeID        string
	Content        grading.CritiqueContent
	RevisionStatus grading.RevisionStatus
	HumanApproved  bool
	ApprovedBy     sql.NullString
	ApprovedAt     sql.NullTime
	CreatedAt      time.Time
}

// Store is the persistence collaborator. All writes inside one grading cycle
// go through WithinUnit so a failed cycle leaves no partial records.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS assignments (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	rubric      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL REFERENCES assignments(id),
	student_name  TEXT NOT NULL,
	content       TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'queued',
	overall_score REAL,
	submitted_at  TIMESTAMP NOT NULL,
	graded_at     TIMESTAMP
);
CREATE TABLE IF NOT EXISTS grades (
	id             TEXT PRIMARY KEY,
	assignment_id  TEXT NOT NULL REFERENCES assignments(id),
	submission_id  TEXT NOT NULL REFERENCES submissions(id),
	type           TEXT NOT NULL,
	content        TEXT NOT NULL,
	human_approved INTEGER NOT NULL DEFAULT 0,
	approved_by    TEXT,
	approved_at    TIMESTAMP,
	created_at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS critiques (
	id              TEXT PRIMARY KEY,
	assignment_id   TEXT NOT NULL REFERENCES assignments(id),
	submission_id   TEXT NOT NULL REFERENCES submissions(id),
	grade_id        TEXT NOT NULL REFERENCES grades(id),
	content         TEXT NOT NULL,
	revision_status TEXT NOT NULL,
	human_approved  INTEGER NOT NULL DEFAULT 0,
	approved_by     TEXT,
	approved_at     TIMESTAMP,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_grades_submission ON grades(submission_id);
CREATE INDEX IF NOT EXISTS idx_grades_approved ON grades(assignment_id, human_approved);
CREATE INDEX IF NOT EXISTS idx_critiques_grade ON critiques(grade_id);
`

// Open opens (and migrates) the sqlite database at path. Use ":memory:" for
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Sequential writers per cycle; a single connection avoids SQLITE_BUSY
	// between concurrent units of work.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier abstracts *sql.DB and *sql.Tx so reads and writes share code.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Unit is one atomic unit of work. All grade/critique writes during a grading
// cycle happen on a Unit; rollback discards them together.
type Unit struct {
	tx  *sql.Tx
	ctx context.Context
}

// WithinUnit runs fn inside a transaction, committing on nil error and
// rolling back everything otherwise.
func (s *Store) WithinUnit(ctx context.Context, fn func(u *Unit) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	u := &Unit{tx: tx, ctx: ctx}
	if err := fn(u); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// CreateAssignment persists an assignment with its rubric.
func (s *Store) CreateAssignment(ctx context.Context, title, description string, rubric grading.Rubric) (*Assignment, error) {
	rubricJSON, err := json.Marshal(rubric)
	if err != nil {
		return nil, fmt.Errorf("marshal rubric: %w", err)
	}
	a := &Assignment{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Rubric:      rubric,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assignments (id, title, description, rubric, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Description, string(rubricJSON), a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	return a, nil
}

// GetAssignment loads an assignment and its rubric.
func (s *Store) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	var a Assignment
	var rubricJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, rubric, created_at FROM assignments WHERE id = ?`, id).
		Scan(&a.ID, &a.Title, &a.Description, &rubricJSON, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(rubricJSON), &a.Rubric); err != nil {
		return nil, fmt.Errorf("unmarshal rubric: %w", err)
	}
	return &a, nil
}

// CreateSubmission persists a queued submission.
func (s *Store) CreateSubmission(ctx context.Context, assignmentID, studentName, content string) (*Submission, error) {
	sub := &Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		StudentName:  studentName,
		Content:      content,
		Status:       StatusQueued,
		SubmittedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, assignment_id, student_name, content, status, submitted_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.AssignmentID, sub.StudentName, sub.Content, sub.Status, sub.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

// GetSubmission loads a submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	return scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT id, assignment_id, student_name, content, status, overall_score, submitted_at, graded_at
		 FROM submissions WHERE id = ?`, id))
}

func scanSubmission(row *sql.Row) (*Submission, error) {
	var sub Submission
	err := row.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentName, &sub.Content,
		&sub.Status, &sub.OverallScore, &sub.SubmittedAt, &sub.GradedAt)
	if err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return &sub, nil
}

// UpdateSubmissionStatus records a lifecycle transition outside any unit of
// work (queued -> grading, or -> error after a rolled-back cycle).
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE submissions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return nil
}

// CreateGrade appends a grade row inside the unit of work.
func (u *Unit) CreateGrade(assignmentID, submissionID string, gradeType grading.GradeType, content grading.GradeContent) (*Grade, error) {
	return insertGrade(u.ctx, u.tx, assignmentID, submissionID, gradeType, content, false, "")
}

// CreateApprovedGrade appends a grade already carrying human approval
// (override reconciliation output).
func (u *Unit) CreateApprovedGrade(assignmentID, submissionID string, gradeType grading.GradeType, content grading.GradeContent, approver string) (*Grade, error) {
	return insertGrade(u.ctx, u.tx, assignmentID, submissionID, gradeType, content, true, approver)
}

func insertGrade(ctx context.Context, q querier, assignmentID, submissionID string, gradeType grading.GradeType, content grading.GradeContent, approved bool, approver string) (*Grade, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal grade content: %w", err)
	}
	g := &Grade{
		ID:            uuid.NewString(),
		AssignmentID:  assignmentID,
		SubmissionID:  submissionID,
		Type:          gradeType,
		Content:       content,
		HumanApproved: approved,
		CreatedAt:     time.Now().UTC(),
	}
	var approvedBy any
	var approvedAt any
	if approved {
		g.ApprovedBy = sql.NullString{String: approver, Valid: true}
		g.ApprovedAt = sql.NullTime{Time: g.CreatedAt, Valid: true}
		approvedBy, approvedAt = approver, g.CreatedAt
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO grades (id, assignment_id, submission_id, type, content, human_approved, approved_by, approved_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.AssignmentID, g.SubmissionID, string(g.Type), string(contentJSON), approved, approvedBy, approvedAt, g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert grade: %w", err)
	}
	return g, nil
}

// PromoteGrade updates a grade's lifecycle type. Used only to mark the
// current grade final; content is never touched.
func (u *Unit) PromoteGrade(gradeID string, gradeType grading.GradeType) error {
	res, err := u.tx.ExecContext(u.ctx, `UPDATE grades SET type = ? WHERE id = ?`, string(gradeType), gradeID)
	if err != nil {
		return fmt.Errorf("promote grade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("promote grade: %s not found", gradeID)
	}
	return nil
}

// CreateCritique appends a critique bound to a grade inside the unit of work.
func (u *Unit) CreateCritique(assignmentID, submissionID, gradeID string, content grading.CritiqueContent) (*Critique, error) {
	return insertCritique(u.ctx, u.tx, assignmentID, submissionID, gradeID, content, false, "")
}

// CreateApprovedCritique appends a critique already carrying human approval.
func (u *Unit) CreateApprovedCritique(assignmentID, submissionID, gradeID string, content grading.CritiqueContent, approver string) (*Critique, error) {
	return insertCritique(u.ctx, u.tx, assignmentID, submissionID, gradeID, content, true, approver)
}

func insertCritique(ctx context.Context, q querier, assignmentID, submissionID, gradeID string, content grading.CritiqueContent, approved bool, approver string) (*Critique, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal critique content: %w", err)
	}
	c := &Critique{
		ID:             uuid.NewString(),
		AssignmentID:   assignmentID,
		SubmissionID:   submissionID,
		GradeID:        gradeID,
		Content:        content,
		RevisionStatus: content.RevisionStatus,
		HumanApproved:  approved,
		CreatedAt:      time.Now().UTC(),
	}
	var approvedBy any
	var approvedAt any
	if approved {
		c.ApprovedBy = sql.NullString{String: approver, Valid: true}
		c.ApprovedAt = sql.NullTime{Time: c.CreatedAt, Valid: true}
		approvedBy, approvedAt = approver, c.CreatedAt
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO critiques (id, assignment_id, submission_id, grade_id, content, revision_status, human_approved, approved_by, approved_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AssignmentID, c.SubmissionID, c.GradeID, string(contentJSON), string(c.RevisionStatus), approved, approvedBy, approvedAt, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert critique: %w", err)
	}
	return c, nil
}

// FinishSubmission records the final score and graded status inside the unit
// of work, so a rollback also reverts the submission to its prior status.
func (u *Unit) FinishSubmission(submissionID string, overallScore float64) error {
	_, err := u.tx.ExecContext(u.ctx,
		`UPDATE submissions SET status = ?, overall_score = ?, graded_at = ? WHERE id = ?`,
		StatusGraded, overallScore, time.Now().UTC(), submissionID)
	if err != nil {
		return fmt.Errorf("finish submission: %w", err)
	}
	return nil
}

// GetGrade loads a grade by ID.
func (s *Store) GetGrade(ctx context.Context, id string) (*Grade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, submission_id, type, content, human_approved, approved_by, approved_at, created_at
		 FROM grades WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get grade %s: %w", id, err)
	}
	defer rows.Close()
	grades, err := collectGrades(rows)
	if err != nil {
		return nil, err
	}
	if len(grades) == 0 {
		return nil, fmt.Errorf("grade %s not found", id)
	}
	return grades[0], nil
}

// GradesForSubmission returns all grades for a submission, oldest first.
func (s *Store) GradesForSubmission(ctx context.Context, submissionID string) ([]*Grade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, submission_id, type, content, human_approved, approved_by, approved_at, created_at
		 FROM grades WHERE submission_id = ? ORDER BY created_at ASC, id ASC`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("grades for submission: %w", err)
	}
	defer rows.Close()
	return collectGrades(rows)
}

// GetApprovedGrades returns the human-approved grades for an assignment in
// approval order. Only these feed the knowledge base.
func (s *Store) GetApprovedGrades(ctx context.Context, assignmentID string) ([]*Grade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, submission_id, type, content, human_approved, approved_by, approved_at, created_at
		 FROM grades WHERE assignment_id = ? AND human_approved = 1 ORDER BY approved_at ASC, id ASC`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("approved grades: %w", err)
	}
	defer rows.Close()
	return collectGrades(rows)
}

func collectGrades(rows *sql.Rows) ([]*Grade, error) {
	var grades []*Grade
	for rows.Next() {
		var g Grade
		var gradeType, contentJSON string
		err := rows.Scan(&g.ID, &g.AssignmentID, &g.SubmissionID, &gradeType, &contentJSON,
			&g.HumanApproved, &g.ApprovedBy, &g.ApprovedAt, &g.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		g.Type = grading.GradeType(gradeType)
		if err := json.Unmarshal([]byte(contentJSON), &g.Content); err != nil {
			return nil, fmt.Errorf("unmarshal grade content: %w", err)
		}
		grades = append(grades, &g)
	}
	return grades, rows.Err()
}

// GetApprovedCritiques returns the human-approved critiques for an assignment.
func (s *Store) GetApprovedCritiques(ctx context.Context, assignmentID string) ([]*Critique, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, submission_id, grade_id, content, revision_status, human_approved, approved_by, approved_at, created_at
		 FROM critiques WHERE assignment_id = ? AND human_approved = 1 ORDER BY approved_at ASC, id ASC`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("approved critiques: %w", err)
	}
	defer rows.Close()

	var critiques []*Critique
	for rows.Next() {
		var c Critique
		var revStatus, contentJSON string
		err := rows.Scan(&c.ID, &c.AssignmentID, &c.SubmissionID, &c.GradeID, &contentJSON,
			&revStatus, &c.HumanApproved, &c.ApprovedBy, &c.ApprovedAt, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan critique: %w", err)
		}
		c.RevisionStatus = grading.RevisionStatus(revStatus)
		if err := json.Unmarshal([]byte(contentJSON), &c.Content); err != nil {
			return nil, fmt.Errorf("unmarshal critique content: %w", err)
		}
		critiques = append(critiques, &c)
	}
	return critiques, rows.Err()
}

// GetCritique loads a critique by ID.
func (s *Store) GetCritique(ctx context.Context, id string) (*Critique, error) {
	var c Critique
	var revStatus, contentJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, assignment_id, submission_id, grade_id, content, revision_status, human_approved, approved_by, approved_at, created_at
		 FROM critiques WHERE id = ?`, id).
		Scan(&c.ID, &c.AssignmentID, &c.SubmissionID, &c.GradeID, &contentJSON,
			&revStatus, &c.HumanApproved, &c.ApprovedBy, &c.ApprovedAt, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get critique %s: %w", id, err)
	}
	c.RevisionStatus = grading.RevisionStatus(revStatus)
	if err := json.Unmarshal([]byte(contentJSON), &c.Content); err != nil {
		return nil, fmt.Errorf("unmarshal critique content: %w", err)
	}
	return &c, nil
}

// MarkGradeApproved records human approval. Approval is monotonic: approving
// an already-approved grade is a no-op that keeps the original approver.
func (s *Store) MarkGradeApproved(ctx context.Context, gradeID, approver string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE grades SET human_approved = 1, approved_by = ?, approved_at = ?
		 WHERE id = ? AND human_approved = 0`,
		approver, time.Now().UTC(), gradeID)
	if err != nil {
		return fmt.Errorf("approve grade: %w", err)
	}
	return nil
}

// MarkCritiqueApproved records human approval of a critique (monotonic).
func (s *Store) MarkCritiqueApproved(ctx context.Context, critiqueID, approver string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE critiques SET human_approved = 1, approved_by = ?, approved_at = ?
		 WHERE id = ? AND human_approved = 0`,
		approver, time.Now().UTC(), critiqueID)
	if err != nil {
		return fmt.Errorf("approve critique: %w", err)
	}
	return nil
}

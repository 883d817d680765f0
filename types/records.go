package types

import "time"

// Record holds the columns every record table shares.
type Record struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SetID sets the primary key before an update.
func (r *Record) SetID(id int64) {
	r.ID = id
}

// SchoolYear is an academic year that classes belong to.
type SchoolYear struct {
	Record
	Label     string `json:"label" db:"label" validate:"required,max=32"`
	StartsOn  Date   `json:"starts_on" db:"starts_on" validate:"required"`
	EndsOn    Date   `json:"ends_on" db:"ends_on" validate:"required"`
	IsCurrent bool   `json:"is_current" db:"is_current"`
}

// Subject is a taught subject.
type Subject struct {
	Record
	Name        string `json:"name" db:"name" validate:"required,max=128"`
	Code        string `json:"code" db:"code" validate:"required,max=32"`
	Description string `json:"description" db:"description"`
}

// Teacher is a member of staff. Email links the teacher to a user account
// and to their video recordings.
type Teacher struct {
	Record
	Email     string `json:"email" db:"email" validate:"required,email"`
	Name      string `json:"name" db:"name" validate:"required,max=128"`
	SubjectID *int64 `json:"subject_id" db:"subject_id"`
}

// StudentStatus is an enrolment status label such as "active" or "graduated".
type StudentStatus struct {
	Record
	Name        string `json:"name" db:"name" validate:"required,max=64"`
	Description string `json:"description" db:"description"`
}

// Class is a group of students taught together during a school year.
type Class struct {
	Record
	Name         string `json:"name" db:"name" validate:"required,max=64"`
	GradeLevel   int    `json:"grade_level" db:"grade_level" validate:"gte=0,lte=20"`
	SchoolYearID *int64 `json:"school_year_id" db:"school_year_id"`
	TeacherID    *int64 `json:"teacher_id" db:"teacher_id"`
}

// Student is an enrolled learner.
type Student struct {
	Record
	FirstName string `json:"first_name" db:"first_name" validate:"required,max=64"`
	LastName  string `json:"last_name" db:"last_name" validate:"required,max=64"`
	Email     string `json:"email" db:"email" validate:"omitempty,email"`
	ClassID   *int64 `json:"class_id" db:"class_id"`
	StatusID  *int64 `json:"status_id" db:"status_id"`
}

// Activity is a graded piece of work (quiz, exam, assignment) for a class.
type Activity struct {
	Record
	ClassID   int64   `json:"class_id" db:"class_id" validate:"required"`
	SubjectID *int64  `json:"subject_id" db:"subject_id"`
	Title     string  `json:"title" db:"title" validate:"required,max=128"`
	Kind      string  `json:"kind" db:"kind" validate:"required,oneof=quiz exam assignment project other"`
	MaxScore  float64 `json:"max_score" db:"max_score" validate:"gt=0"`
	HeldOn    Date    `json:"held_on" db:"held_on" validate:"required"`
}

// Grade is a student's score, optionally for a specific activity.
type Grade struct {
	Record
	StudentID  int64   `json:"student_id" db:"student_id" validate:"required"`
	ActivityID *int64  `json:"activity_id" db:"activity_id"`
	SubjectID  *int64  `json:"subject_id" db:"subject_id"`
	Score      float64 `json:"score" db:"score" validate:"gte=0"`
	Term       string  `json:"term" db:"term" validate:"max=32"`
	Remarks    string  `json:"remarks" db:"remarks"`
}

// Evaluation is a qualitative assessment of a student by a teacher.
type Evaluation struct {
	Record
	StudentID   int64  `json:"student_id" db:"student_id" validate:"required"`
	TeacherID   *int64 `json:"teacher_id" db:"teacher_id"`
	SubjectID   *int64 `json:"subject_id" db:"subject_id"`
	Criteria    string `json:"criteria" db:"criteria" validate:"required,max=128"`
	Rating      int    `json:"rating" db:"rating" validate:"required,min=1,max=5"`
	Comments    string `json:"comments" db:"comments"`
	EvaluatedOn Date   `json:"evaluated_on" db:"evaluated_on" validate:"required"`
}

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// Attendance is one student's presence on one day. There is at most one
// entry per student and date.
type Attendance struct {
	Record
	StudentID int64  `json:"student_id" db:"student_id" validate:"required"`
	ClassID   int64  `json:"class_id" db:"class_id" validate:"required"`
	Date      Date   `json:"date" db:"date" validate:"required"`
	Status    string `json:"status" db:"status" validate:"required,oneof=present absent late excused"`
	Remarks   string `json:"remarks" db:"remarks"`
}

// VideoInfo describes a stored recording.
type VideoInfo struct {
	TeacherEmail string    `json:"teacher_email"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	UpdatedAt    time.Time `json:"updated_at"`
}

package school

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the format of a student's birthdate
const DateLayout = "2006-01-02"

const (
	MinFullnameLength = 2
	MaxFullnameLength = 100
	MinGrade          = 0
	MaxGrade          = 10
)

var (
	studentPhonePattern = regexp.MustCompile(`^\+375(25|29|33|44|17|23)\d{7}$`)
	teacherPhonePattern = regexp.MustCompile(`^\+375(25|29|33|35|44|17|23)\d{7}$`)
)

// ErrInvalid is matched by every error returned from a Validate method
var ErrInvalid = errors.New("invalid record")

// FieldError describes a single field that failed validation
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalid
}

// Fields returns every FieldError contained in err
func Fields(err error) []*FieldError {
	var fields []*FieldError
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			fields = append(fields, Fields(e)...)
		}
		return fields
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		fields = append(fields, fieldErr)
	}
	return fields
}

type validator struct {
	errs []error
}

func (v *validator) fail(field, format string, args ...interface{}) {
	v.errs = append(v.errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) fullname(value string) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n == 0 {
		v.fail("fullname", "is required")
	} else if n < MinFullnameLength || n > MaxFullnameLength {
		v.fail("fullname", "must be from %d to %d characters", MinFullnameLength, MaxFullnameLength)
	}
}

func (v *validator) phone(value string, pattern *regexp.Regexp) {
	if value == "" {
		v.fail("phone", "is required")
	} else if !pattern.MatchString(value) {
		v.fail("phone", "must match %s", pattern.String())
	}
}

func (v *validator) reference(field string, id int64) {
	if id <= 0 {
		v.fail(field, "is required")
	}
}

func (v *validator) err() error {
	return errors.Join(v.errs...)
}

// ParseBirthdate parses a birthdate in DateLayout as midnight in loc
func ParseBirthdate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, loc)
}

// AgeOn returns the age in whole years, as of now, of somebody born on birthdate
func AgeOn(birthdate, now time.Time) int {
	years := now.Year() - birthdate.Year()
	if now.Month() < birthdate.Month() || (now.Month() == birthdate.Month() && now.Day() < birthdate.Day()) {
		years--
	}
	return years
}

// Validate checks the request as of the given time, which bounds the birthdate
func (r StudentRequest) Validate(now time.Time) error {
	var v validator
	v.fullname(r.Fullname)
	v.phone(r.Phone, studentPhonePattern)
	if r.Birthdate == "" {
		v.fail("birthdate", "is required")
	} else if birthdate, err := ParseBirthdate(r.Birthdate, now.Location()); err != nil {
		v.fail("birthdate", "must be formatted as YYYY-MM-DD")
	} else if birthdate.After(now) {
		v.fail("birthdate", "must not be in the future")
	}
	v.reference("groupId", r.GroupID)
	return v.err()
}

func (r GroupRequest) Validate() error {
	var v validator
	if strings.TrimSpace(r.Name) == "" {
		v.fail("name", "is required")
	}
	return v.err()
}

func (r SubjectRequest) Validate() error {
	var v validator
	if strings.TrimSpace(r.Name) == "" {
		v.fail("name", "is required")
	}
	return v.err()
}

func (r TeacherRequest) Validate() error {
	var v validator
	v.fullname(r.Fullname)
	v.phone(r.Phone, teacherPhonePattern)
	return v.err()
}

func (r GradeRequest) Validate() error {
	var v validator
	v.reference("studentId", r.StudentID)
	v.reference("subjectId", r.SubjectID)
	v.reference("teacherId", r.TeacherID)
	if r.Grade < MinGrade || r.Grade > MaxGrade {
		v.fail("grade", "must be from %d to %d", MinGrade, MaxGrade)
	}
	return v.err()
}

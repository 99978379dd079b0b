package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxCategoryLength    = 100
)

var (
	// ErrEmptyTitle is returned when a title is blank after trimming.
	ErrEmptyTitle = errors.New("title is required")
	// ErrEmptyUpdate is returned for an update that changes no field.
	ErrEmptyUpdate = errors.New("update has no fields")
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	err     error
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

func (e FieldError) Unwrap() error { return e.err }

// ValidationErrors collects every invalid field of a draft or update.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Error()
	}
	return "invalid task: " + strings.Join(parts, "; ")
}

// Unwrap exposes the sentinel errors of the individual fields.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, 0, len(v))
	for _, fe := range v {
		if fe.err != nil {
			out = append(out, fe.err)
		}
	}
	return out
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ValidateDraft checks a normalized draft.
func ValidateDraft(d Draft) error {
	var errs ValidationErrors
	errs = checkTitle(errs, d.Title)
	errs = checkLength(errs, "description", d.Description, MaxDescriptionLength)
	errs = checkLength(errs, "category", d.Category, MaxCategoryLength)
	if !d.Status.Valid() {
		errs = append(errs, FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", d.Status)})
	}
	if !d.Priority.Valid() {
		errs = append(errs, FieldError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", d.Priority)})
	}
	return errs.orNil()
}

// ValidateUpdate checks a normalized update.
func ValidateUpdate(u Update) error {
	if u.Empty() {
		return ErrEmptyUpdate
	}
	var errs ValidationErrors
	if u.Title != nil {
		errs = checkTitle(errs, *u.Title)
	}
	if u.Description != nil {
		errs = checkLength(errs, "description", *u.Description, MaxDescriptionLength)
	}
	if u.Category != nil {
		errs = checkLength(errs, "category", *u.Category, MaxCategoryLength)
	}
	if u.Status != nil && !u.Status.Valid() {
		errs = append(errs, FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", *u.Status)})
	}
	if u.Priority != nil && !u.Priority.Valid() {
		errs = append(errs, FieldError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", *u.Priority)})
	}
	return errs.orNil()
}

func checkTitle(errs ValidationErrors, title string) ValidationErrors {
	if strings.TrimSpace(title) == "" {
		return append(errs, FieldError{Field: "title", Message: ErrEmptyTitle.Error(), err: ErrEmptyTitle})
	}
	return checkLength(errs, "title", title, MaxTitleLength)
}

func checkLength(errs ValidationErrors, field, value string, limit int) ValidationErrors {
	if utf8.RuneCountInString(value) > limit {
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", limit)})
	}
	return errs
}

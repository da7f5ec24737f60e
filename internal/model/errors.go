package model

import "fmt"

// ErrorKind classifies a domain failure.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindInvalidStatus     ErrorKind = "invalid_status"
	KindInvalidPriority   ErrorKind = "invalid_priority"
	KindInvalidDate       ErrorKind = "invalid_date"
	KindInvalidSortField  ErrorKind = "invalid_sort_field"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidIDFormat   ErrorKind = "invalid_id_format"
	KindDuplicateEmail    ErrorKind = "duplicate_email"
	KindInvalidPagination ErrorKind = "invalid_pagination"
	KindUserNotFound      ErrorKind = "user_not_found"
)

// IsValidation reports whether the kind is caller-correctable input.
func (k ErrorKind) IsValidation() bool {
	switch k {
	case KindValidation, KindInvalidStatus, KindInvalidPriority, KindInvalidDate, KindInvalidSortField:
		return true
	}
	return false
}

// Error represents a domain error for tasks and users.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on kind. Every validation sub-kind also matches ErrValidation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindValidation && e.Kind.IsValidation()
}

// NewError builds an Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidStatus     = &Error{Kind: KindInvalidStatus, Message: "invalid status"}
	ErrInvalidPriority   = &Error{Kind: KindInvalidPriority, Message: "invalid priority"}
	ErrInvalidDate       = &Error{Kind: KindInvalidDate, Message: "invalid date format"}
	ErrInvalidSortField  = &Error{Kind: KindInvalidSortField, Message: "invalid sort criteria"}
	ErrTaskNotFound      = &Error{Kind: KindNotFound, Message: "task not found"}
	ErrInvalidIDFormat   = &Error{Kind: KindInvalidIDFormat, Message: "invalid id format"}
	ErrDuplicateEmail    = &Error{Kind: KindDuplicateEmail, Message: "email already in use"}
	ErrInvalidPagination = &Error{Kind: KindInvalidPagination, Message: "invalid pagination parameters"}
	ErrUserNotFound      = &Error{Kind: KindUserNotFound, Message: "user not found"}
)

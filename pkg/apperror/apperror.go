package apperror

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind 错误类别
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindAuthorization
	KindValidation
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error 业务错误
// Row/Field/Value 用于批量导入时定位出错的行、列和原始值
type Error struct {
	Kind    Kind
	Message string
	Row     int
	Field   string
	Value   string
	Values  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithRow 附加行号
func (e *Error) WithRow(row int) *Error {
	e.Row = row
	return e
}

// WithField 附加列名和原始值
func (e *Error) WithField(field, value string) *Error {
	e.Field = field
	e.Value = value
	return e
}

// WithValues 附加一组出错的值
func (e *Error) WithValues(values []string) *Error {
	e.Values = values
	return e
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return newf(KindAuthorization, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func Storage(err error, format string, args ...any) *Error {
	e := newf(KindStorage, format, args...)
	e.Err = err
	return e
}

// KindOf 返回错误类别，非 *Error 返回 KindUnknown
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind 判断错误类别
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As 取出 *Error
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// FromStore 将存储层错误归类；已经是 *Error 的原样返回
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("%s not found", what)
	}
	if IsDuplicate(err) {
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return &Error{Kind: KindConflict, Message: what + " is still referenced", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return &Error{Kind: KindConflict, Message: what + " is still referenced", Err: err}
	}
	return Storage(err, "%s storage failure", what)
}

// IsDuplicate 是否唯一约束冲突
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

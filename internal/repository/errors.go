package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrListingNotFound 刊登不存在，或不属于当前用户
var ErrListingNotFound = errors.New("刊登不存在或无权访问")

// StoreError 存储层错误，携带数据库返回的详细信息
type StoreError struct {
	Op      string `json:"-"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Code    string `json:"code,omitempty"`
	Err     error  `json:"-"`
}

func (e *StoreError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapStoreError 包装数据库错误；postgres 错误会带上 detail/hint/code
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}

	se := &StoreError{Op: op, Message: err.Error(), Err: err}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Message = pgErr.Message
		se.Details = pgErr.Detail
		se.Hint = pgErr.Hint
		se.Code = pgErr.Code
	}
	return se
}

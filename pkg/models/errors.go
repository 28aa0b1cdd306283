package models

import "fmt"

// DataError 入力データ起因のエラー（必須列の欠落、日付の解析失敗、空入力など）。
// Row は問題のあった行番号（0始まり、特定できない場合は -1）。
type DataError struct {
	Op    string
	Row   int
	Field string
	Msg   string
}

func (e *DataError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("%s: row %d: field %q: %s", e.Op, e.Row, e.Field, e.Msg)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Op, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// NewDataError constructs a DataError.
func NewDataError(op string, row int, field, msg string) error {
	return &DataError{Op: op, Row: row, Field: field, Msg: msg}
}

// ValidationError 設定値や特徴量スキーマの不整合エラー。
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// ModelError モデル学習・推論時のエラー（学習行数不足、特異行列など）。
type ModelError struct {
	Op  string
	Msg string
	Err error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError constructs a ModelError.
func NewModelError(op, msg string, err error) error {
	return &ModelError{Op: op, Msg: msg, Err: err}
}

package errors

import (
	"errors"
	"fmt"
)

// ── 错误分类 ──
// 业务层通过 errors.Is 判断类别，通过 errors.As 取出 *FieldError 获取字段详情

var (
	ErrInvalidIdentifier    = errors.New("标识符无效")
	ErrInvalidDate          = errors.New("日期无效")
	ErrMissingRequiredField = errors.New("缺少必填字段")
	ErrNotFound             = errors.New("记录不存在")
	ErrValidation           = errors.New("数据校验失败")
	ErrDuplicateSchedule    = errors.New("该操作员当天已存在冲突的工作时段")
)

// DuplicateScheduleCode 工作时段冲突的区分码（对外响应中原样返回）
const DuplicateScheduleCode = "HORARIO_DUPLICADO"

// FieldError 带字段定位信息的结构化错误
type FieldError struct {
	Kind    error  // 上面的错误类别之一
	Field   string // 出错字段，如 activities[2].machine_ids[0]
	Value   string // 出错的原始值（可为空）
	Message string // 附加说明
}

func (e *FieldError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Field)
	}
	if e.Value != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Value)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s，%s", msg, e.Message)
	}
	return msg
}

// Unwrap 使 errors.Is(err, ErrXxx) 生效
func (e *FieldError) Unwrap() error { return e.Kind }

// WithPrefix 返回字段名带前缀的副本（批量校验时标注下标）
func (e *FieldError) WithPrefix(prefix string) *FieldError {
	cp := *e
	if cp.Field == "" {
		cp.Field = prefix
	} else {
		cp.Field = prefix + "." + cp.Field
	}
	return &cp
}

func InvalidIdentifier(field, value string) *FieldError {
	return &FieldError{Kind: ErrInvalidIdentifier, Field: field, Value: value}
}

func InvalidDate(field, value string) *FieldError {
	return &FieldError{Kind: ErrInvalidDate, Field: field, Value: value}
}

func MissingField(field string) *FieldError {
	return &FieldError{Kind: ErrMissingRequiredField, Field: field}
}

func NotFound(field, value string) *FieldError {
	return &FieldError{Kind: ErrNotFound, Field: field, Value: value}
}

func Validation(field, value, message string) *FieldError {
	return &FieldError{Kind: ErrValidation, Field: field, Value: value, Message: message}
}

func DuplicateSchedule(field, message string) *FieldError {
	return &FieldError{Kind: ErrDuplicateSchedule, Field: field, Message: message}
}

// AsFieldError 提取错误链中的 *FieldError
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

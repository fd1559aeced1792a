// Package apperr 定义跨层使用的错误分类
// 处理器根据分类映射 HTTP 状态码：NotFound→404，Validation→400，其余→500
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 数据集、工作区或文件不存在
	ErrNotFound = errors.New("not found")
	// ErrValidation 请求或数据不合法
	ErrValidation = errors.New("validation failed")
	// ErrStorage 存储层不可用
	ErrStorage = errors.New("storage failure")
)

// classified 携带分类与对外消息的错误
type classified struct {
	kind error
	msg  string
	err  error
}

func (e *classified) Error() string {
	return e.msg
}

func (e *classified) Unwrap() []error {
	if e.err != nil {
		return []error{e.kind, e.err}
	}
	return []error{e.kind}
}

// NotFound 构造 NotFound 错误
func NotFound(format string, args ...interface{}) error {
	return &classified{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Validation 构造 Validation 错误
func Validation(format string, args ...interface{}) error {
	return &classified{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// Storage 包装存储层错误
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsValidation(err) {
		return err
	}
	return &classified{kind: ErrStorage, msg: err.Error(), err: err}
}

// IsNotFound 判断是否为 NotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation 判断是否为 Validation
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

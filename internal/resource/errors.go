package resource

import (
	"errors"
	"fmt"
)

// Kind 枚举加载失败的类别，集合是封闭的。
type Kind int

const (
	KindLoadFailed Kind = iota + 1
	KindUnauthorized
	KindLoadFailedNoData
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindLoadFailed:
		return "load_failed"
	case KindLoadFailedNoData:
		return "load_failed_no_data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error 是决策引擎与传输层对外暴露的唯一错误类型。
type Error struct {
	Kind  Kind
	Cause error
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrLoadFailed       = &Error{Kind: KindLoadFailed}
	ErrLoadFailedNoData = &Error{Kind: KindLoadFailedNoData}
)

// Unauthorized 构造鉴权失败错误。
func Unauthorized(cause error) *Error {
	return &Error{Kind: KindUnauthorized, Cause: cause}
}

// LoadFailed 构造通用加载失败错误，cause 可以是传输或存储错误。
func LoadFailed(cause error) *Error {
	return &Error{Kind: KindLoadFailed, Cause: cause}
}

// LoadFailedNoData 表示响应成功但没有正文。
func LoadFailedNoData() *Error {
	return &Error{Kind: KindLoadFailedNoData}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 仅比较 Kind，使 errors.Is(err, ErrUnauthorized) 对任意 cause 成立。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf 提取错误链上的 Kind；不属于本包的错误返回 0。
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

// AsLoadError 将任意错误归一为 *Error：已分类的原样返回，其余包装为 LoadFailed。
func AsLoadError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return LoadFailed(err)
}

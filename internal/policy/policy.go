package policy

import "fmt"

// Kind 枚举四种缓存策略。
type Kind int

const (
	KindNever Kind = iota + 1
	KindAlways
	KindLazy
	KindRequired
)

func (k Kind) String() string {
	switch k {
	case KindNever:
		return "never"
	case KindAlways:
		return "always"
	case KindLazy:
		return "lazy"
	case KindRequired:
		return "required"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Policy 是不可变的策略值；Lazy/Required 额外携带 Cadence。
type Policy struct {
	kind    Kind
	cadence Cadence
}

// Never 跳过缓存读取，始终回源，但结果仍会写盘供后续使用。
func Never() Policy { return Policy{kind: KindNever} }

// Always 只要本地存在文件就直接返回，不检查时间。
func Always() Policy { return Policy{kind: KindAlways} }

// Lazy 命中即返回，过期时在后台刷新（stale-while-revalidate）。
func Lazy(c Cadence) Policy { return Policy{kind: KindLazy, cadence: c} }

// Required 仅在文件新鲜时复用，否则同步回源。
func Required(c Cadence) Policy { return Policy{kind: KindRequired, cadence: c} }

func (p Policy) Kind() Kind { return p.kind }

// Cadence 返回策略的刷新窗口；ok 为 false 表示该策略不携带窗口。
func (p Policy) Cadence() (Cadence, bool) {
	switch p.kind {
	case KindLazy, KindRequired:
		return p.cadence, true
	default:
		return Cadence{}, false
	}
}

// IsZero 表示未设置策略，调用方据此回退到默认值。
func (p Policy) IsZero() bool {
	return p.kind == 0
}

// String 输出可被 Parse 回读的文本形式。
func (p Policy) String() string {
	switch p.kind {
	case KindLazy, KindRequired:
		return p.kind.String() + ":" + p.cadence.String()
	case KindNever, KindAlways:
		return p.kind.String()
	default:
		return ""
	}
}

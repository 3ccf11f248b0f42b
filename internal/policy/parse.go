package policy

import (
	"fmt"
	"strings"
)

// Parse 解析 never / always / lazy:<cadence> / required:<cadence>。
func Parse(raw string) (Policy, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return Policy{}, fmt.Errorf("empty cache policy")
	}

	name, arg, hasArg := strings.Cut(normalized, ":")
	switch name {
	case "never", "always":
		if hasArg {
			return Policy{}, fmt.Errorf("cache policy %q does not take a cadence", name)
		}
		if name == "never" {
			return Never(), nil
		}
		return Always(), nil
	case "lazy", "required":
		if !hasArg {
			return Policy{}, fmt.Errorf("cache policy %q requires a cadence, e.g. %s:3d", name, name)
		}
		cadence, err := ParseCadence(arg)
		if err != nil {
			return Policy{}, err
		}
		if name == "lazy" {
			return Lazy(cadence), nil
		}
		return Required(cadence), nil
	default:
		return Policy{}, fmt.Errorf("unknown cache policy %q (never|always|lazy:<n><unit>|required:<n><unit>)", raw)
	}
}

// MustParse 在解析失败时 panic。
func MustParse(raw string) Policy {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// UnmarshalText 让 Policy 可以直接出现在 JSON 请求体中。
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText 与 UnmarshalText 对称。
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

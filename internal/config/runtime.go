package config

import (
	"strings"

	"github.com/any-hub/filecache/internal/policy"
)

// Resolved 是某个 URL 在规则匹配后的生效参数。
type Resolved struct {
	Rule      string
	Policy    policy.Policy
	Protected bool
}

// MatchRule 返回前缀最长的匹配规则。
func (c *Config) MatchRule(rawURL string) (RuleConfig, bool) {
	var (
		best  RuleConfig
		found bool
	)
	for _, rule := range c.Rules {
		if !strings.HasPrefix(rawURL, rule.Prefix) {
			continue
		}
		if !found || len(rule.Prefix) > len(best.Prefix) {
			best = rule
			found = true
		}
	}
	return best, found
}

// Resolve 计算 URL 的默认策略与鉴权标记：先看规则，再回退到全局 DefaultPolicy。
func (c *Config) Resolve(rawURL string) Resolved {
	resolved := Resolved{Policy: c.Global.CachePolicy()}
	rule, ok := c.MatchRule(rawURL)
	if !ok {
		return resolved
	}
	resolved.Rule = rule.Name
	resolved.Protected = rule.Protected
	if p := rule.CachePolicy(); !p.IsZero() {
		resolved.Policy = p
	}
	return resolved
}

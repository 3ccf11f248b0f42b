package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/policy"
)

var supportedDestinations = map[string]struct{}{
	"documents": {},
	"caches":    {},
}

const supportedDestinationList = "documents|caches"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if _, ok := supportedDestinations[g.Destination]; !ok {
		return newFieldError("Global.Destination", "仅支持 "+supportedDestinationList)
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if _, err := policy.Parse(g.DefaultPolicy); err != nil {
		return newFieldError("Global.DefaultPolicy", err.Error())
	}
	if strings.ContainsAny(g.AuthHeader, " :\r\n") {
		return newFieldError("Global.AuthHeader", "不是合法的 Header 名称")
	}
	if g.ErrorSinkWorkers <= 0 {
		return newFieldError("Global.ErrorSinkWorkers", "必须大于 0")
	}
	if g.ErrorSinkQueue <= 0 {
		return newFieldError("Global.ErrorSinkQueue", "必须大于 0")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Rules {
		rule := &c.Rules[i]
		if rule.Name == "" {
			return newFieldError("Rule[].Name", "不能为空")
		}
		if _, exists := seenNames[rule.Name]; exists {
			return newFieldError(ruleField(rule.Name, "Name"), "重复")
		}
		seenNames[rule.Name] = struct{}{}

		if err := validatePrefix(rule.Prefix); err != nil {
			return fmt.Errorf("%s: %w", ruleField(rule.Name, "Prefix"), err)
		}
		if rule.Policy != "" {
			if _, err := policy.Parse(rule.Policy); err != nil {
				return newFieldError(ruleField(rule.Name, "Policy"), err.Error())
			}
		}
	}

	return nil
}

func validatePrefix(raw string) error {
	if raw == "" {
		return errors.New("缺少 URL 前缀")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，前缀: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("前缀缺少 Host: %s", raw)
	}
	return nil
}

package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ResourceFields 提供资源标识、缓存策略与鉴权标记字段，供 obtain/refresh 日志复用。
func ResourceFields(resource, policy string, protected bool) logrus.Fields {
	return logrus.Fields{
		"resource":  resource,
		"policy":    policy,
		"protected": protected,
	}
}

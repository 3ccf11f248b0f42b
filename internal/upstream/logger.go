package upstream

import (
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// leveledLogger 将 retryablehttp 的 key/value 日志转成 logrus 字段。
type leveledLogger struct {
	logger *logrus.Logger
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Info(msg)
}

// Debug 降级到 logrus Debug；retryablehttp 每次请求都会打一条。
func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}

func (l leveledLogger) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{"action": "upstream_fetch"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		fields[key] = fieldValue(keysAndValues[i+1])
	}
	return l.logger.WithFields(fields)
}

// fieldValue 保证字段可被 JSONFormatter 序列化，*http.Request 等复杂值转为字符串。
func fieldValue(v interface{}) interface{} {
	switch value := v.(type) {
	case nil, string, bool, int, int64, float64, error:
		return value
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

// internal/config/errors.go
package config

import (
	"fmt"
	"strings"
)

// ConfigError 表示缺失了必需的运行配置。
// 它在第一次用到相关配置的请求中以 500 返回给调用方，而不是让进程在启动时崩溃，
// 这样部署后缺了哪个环境变量可以直接从响应里看出来。
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("WhatsApp API not configured. Missing: %s. Set these as environment variables or in the config file.",
		strings.Join(e.Missing, ", "))
}

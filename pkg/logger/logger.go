package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Log 全局日志实例，Init 之前为 Nop
var Log = zap.NewNop()

// Init 初始化日志：dev 使用开发配置，其余环境使用生产配置
func Init(env, level, encoding string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if env == "" || strings.EqualFold(env, "dev") || strings.EqualFold(env, "development") {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	if encoding != "" {
		zapCfg.Encoding = encoding
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger failed: %w", err)
	}
	Log = l
	return l, nil
}

// Sync 刷新缓冲
func Sync() {
	_ = Log.Sync()
}

package svc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nuwa-agi/nuwa/services/server/internal/config"
	"github.com/zeromicro/go-zero/core/logx"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupFileLog redirects logx to a rotating file when c.File is set.
func SetupFileLog(c config.FileLogConfig) {
	if strings.TrimSpace(c.File) == "" {
		return
	}
	path := ResolveServerPath(c.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logx.Errorf("file log: %v", err)
		return
	}
	logx.SetWriter(logx.NewWriter(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}))
	logx.Infof("logging to %s", path)
}

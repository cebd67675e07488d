package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedKeys はログに平文で出力してはならない属性キー。
var redactedKeys = map[string]bool{
	"password":      true,
	"new_password":  true,
	"otp":           true,
	"token":         true,
	"authorization": true,
	"jwt_secret":    true,
}

// ParseLevel はLOG_LEVELの値をslog.Levelに変換する。不明な値はInfoとする。
func ParseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 秘匿情報のキーを持つ属性はDebugより上のレベルでは伏字にする。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact(level),
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定して返す。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, level)
	slog.SetDefault(logger)
	return logger
}

func redact(level slog.Level) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if level <= slog.LevelDebug {
			return a
		}
		if redactedKeys[strings.ToLower(a.Key)] {
			return slog.String(a.Key, "[REDACTED]")
		}
		return a
	}
}

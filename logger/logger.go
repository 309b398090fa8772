package logger

import (
	"io"
	"os"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName は全ログと Sentry イベントに付くサービス名
const ServiceName = "metalego-devnet"

// NewLogger はコンソールと (path が空でなければ) JSON ファイルに出力するロガーをグローバルに設定する
// sentryDsn が設定されている場合、Error 以上は Sentry にも送られる
func NewLogger(path string, debug bool, sentryDsn string) error {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	cores := []zapcore.Core{consoleCore(colorable.NewColorableStdout(), level)}
	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		cores = append(cores, jsonCore(f, level))
	}

	l := zap.New(zapcore.NewTee(cores...)).With(zap.String("service", ServiceName))
	if sentryDsn != "" {
		l = attachSentry(l, zapsentry.NewSentryClientFromDSN(sentryDsn))
	}

	zap.ReplaceGlobals(l)
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

// jsonCore はファイル向けの構造化出力
func jsonCore(w io.Writer, level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), level)
}

func consoleCore(w io.Writer, level zapcore.Level) zapcore.Core {
	ec := encoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.AddSync(w), level)
}

// attachSentry は Error 以上を Sentry に送るコアを追加する
// Info 以上はパンくずとして直近のイベントに添付される
func attachSentry(l *zap.Logger, client zapsentry.SentryClientFactory) *zap.Logger {
	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags: map[string]string{
			"service": ServiceName,
			"network": "devnet",
		},
	}, client)
	if err != nil {
		// 失敗時の core は noop なので、警告だけ出してコンソールとファイルの出力は続ける
		l.Warn("Sentry disabled", zap.Error(err))
		return l
	}
	return zapsentry.AttachCoreToLogger(core, l.With(zapsentry.NewScope()))
}

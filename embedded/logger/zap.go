/*
Copyright 2025 Codenotary Inc. All rights reserved.

SPDX-License-Identifier: BUSL-1.1
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://mariadb.com/bsl11/

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logger

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*ZapLogger)(nil)

// ZapLogger emits JSON lines through a zap core.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger returns a json logger named after the subsystem.
func NewZapLogger(name string, out io.Writer, level LogLevel) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(out),
		zapLevel(level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if name != "" {
		l = l.Named(name)
	}

	return &ZapLogger{sugar: l.Sugar()}
}

// FromZap wraps an already configured zap logger.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogDebug:
		return zapcore.DebugLevel
	case LogWarn:
		return zapcore.WarnLevel
	case LogError:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func (l *ZapLogger) Errorf(f string, args ...interface{}) {
	l.sugar.Errorf(f, args...)
}

func (l *ZapLogger) Warningf(f string, args ...interface{}) {
	l.sugar.Warnf(f, args...)
}

func (l *ZapLogger) Infof(f string, args ...interface{}) {
	l.sugar.Infof(f, args...)
}

func (l *ZapLogger) Debugf(f string, args ...interface{}) {
	l.sugar.Debugf(f, args...)
}

// Close flushes buffered entries.
func (l *ZapLogger) Close() error {
	// stderr/stdout sync fails on some platforms; nothing is lost in that case
	_ = l.sugar.Sync()
	return nil
}

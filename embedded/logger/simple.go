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
	"log"
)

// SimpleLogger writes leveled lines through the standard logger.
type SimpleLogger struct {
	Logger   *log.Logger
	LogLevel LogLevel
}

var levelPrefixes = [...]string{
	LogDebug: "DEBUG: ",
	LogInfo:  "INFO: ",
	LogWarn:  "WARNING: ",
	LogError: "ERROR: ",
}

// NewSimpleLogger returns a text logger whose threshold comes from LOG_LEVEL.
func NewSimpleLogger(name string, out io.Writer) Logger {
	return NewSimpleLoggerWithLevel(name, out, LogLevelFromEnvironment())
}

func NewSimpleLoggerWithLevel(name string, out io.Writer, level LogLevel) Logger {
	return &SimpleLogger{
		Logger:   log.New(out, name+" ", log.LstdFlags),
		LogLevel: level,
	}
}

func (l *SimpleLogger) logf(level LogLevel, f string, v []interface{}) {
	if level < l.LogLevel {
		return
	}
	l.Logger.Printf(levelPrefixes[level]+f, v...)
}

func (l *SimpleLogger) Errorf(f string, v ...interface{}) {
	l.logf(LogError, f, v)
}

func (l *SimpleLogger) Warningf(f string, v ...interface{}) {
	l.logf(LogWarn, f, v)
}

func (l *SimpleLogger) Infof(f string, v ...interface{}) {
	l.logf(LogInfo, f, v)
}

func (l *SimpleLogger) Debugf(f string, v ...interface{}) {
	l.logf(LogDebug, f, v)
}

func (l *SimpleLogger) Close() error {
	return nil
}

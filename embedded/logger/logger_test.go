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
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name           string
		opts           *Options
		wantLoggerType Logger
		wantErr        bool
	}{
		{
			name:           "with json logger",
			opts:           &Options{Name: "foo", LogFormat: LogFormatJSON},
			wantLoggerType: &ZapLogger{},
		},
		{
			name:           "with text logger",
			opts:           &Options{Name: "foo", LogFormat: LogFormatText},
			wantLoggerType: &SimpleLogger{},
		},
		{
			name:    "with unknown format",
			opts:    &Options{Name: "foo", LogFormat: "xml"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.opts)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLoggerType)
				return
			}
			require.NoError(t, err)
			defer l.Close()
			require.Equal(t, reflect.TypeOf(tt.wantLoggerType), reflect.TypeOf(l))
		})
	}
}

func TestZapLogger(t *testing.T) {
	out := &bytes.Buffer{}

	l := NewZapLogger("catalog", out, LogWarn)
	l.Debugf("debug %d", 1)
	l.Infof("info %d", 1)
	l.Warningf("warning %d", 1)
	l.Errorf("error %d", 1)
	require.NoError(t, l.Close())

	logOutput := out.String()
	require.NotContains(t, logOutput, "debug 1")
	require.NotContains(t, logOutput, "info 1")
	require.Contains(t, logOutput, `"message":"warning 1"`)
	require.Contains(t, logOutput, `"message":"error 1"`)
	require.Contains(t, logOutput, `"logger":"catalog"`)
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, LogWarn, ParseLogLevel("WARNING"))
	require.Equal(t, LogDebug, ParseLogLevel("debug"))
	require.Equal(t, LogInfo, ParseLogLevel("bogus"))
}

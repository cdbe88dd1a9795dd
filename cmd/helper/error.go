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

package helper

import (
	"fmt"
	"io"
	"os"

	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/fatih/color"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	osexit           = os.Exit
	stderr io.Writer = os.Stderr
)

// QuitToStdErr prints an error on stderr and closes
func QuitToStdErr(msg interface{}) {
	color.New(color.FgRed).Fprintln(stderr, msg)
	osexit(1)
}

// QuitWithUserError prints the message of err and exits with a code derived
// from its status.
func QuitWithUserError(err error) {
	st, _ := status.FromError(catalog.ToStatus(err))

	msg := st.Message()
	if st.Code() == codes.Unauthenticated {
		msg = "invalid user name or password"
	}

	color.New(color.FgRed).Fprintln(stderr, msg)
	osexit(ExitCode(st.Code()))
}

// ExitCode maps a status code to the process exit status.
func ExitCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return 0
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists:
		return 2
	case codes.Unauthenticated, codes.PermissionDenied:
		return 3
	}
	return 1
}

func OverrideQuitter(quitter func(int)) {
	osexit = quitter
}

func OverrideStderr(w io.Writer) {
	stderr = w
}

func UnwrapMessage(msg interface{}) interface{} {
	if err, ok := msg.(error); ok {
		if st, isStatus := status.FromError(err); isStatus {
			return st.Message()
		}
	}
	return msg
}

// Successf reports a completed mutation.
func Successf(w io.Writer, format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}

// Warnf reports a condition the user likely wants to act on.
func Warnf(w io.Writer, format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintln(w, fmt.Sprintf(format, args...))
}

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

package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func hashPassword(plainPassword string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainPassword), cost)
	if err != nil {
		return "", fmt.Errorf("%w: error hashing password: %v", ErrIllegalArguments, err)
	}
	return string(hashed), nil
}

// checkPassword reports whether plainPassword matches hashed. Stores written
// before hashing was introduced are migrated on open, so a value that is not
// a bcrypt hash never matches.
func checkPassword(hashed, plainPassword string) bool {
	if !isPasswordHash(hashed) {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plainPassword))
	return err == nil
}

func isPasswordHash(s string) bool {
	if !strings.HasPrefix(s, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

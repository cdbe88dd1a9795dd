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

package lock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsNamespace = "colcat"

var (
	metricsWaiting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "lock_waiting_callers",
			Help:      "Number of callers currently blocked on a catalog lock set.",
		},
		[]string{"set"},
	)

	metricsWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire a catalog lock.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"set", "kind"},
	)
)

func observeWait(set string) func(kind string, waited time.Duration, waiting int) {
	return func(kind string, waited time.Duration, waiting int) {
		metricsWaiting.WithLabelValues(set).Set(float64(waiting))
		metricsWaitSeconds.WithLabelValues(set, kind).Observe(waited.Seconds())
	}
}

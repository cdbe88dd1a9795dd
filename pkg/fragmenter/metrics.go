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

package fragmenter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsNamespace = "colcat"

var (
	metricsRowsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "fragmenter_rows_inserted_total",
		Help:      "Rows appended to tables, by database.",
	}, []string{"db"})

	metricsRowsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "fragmenter_rows_updated_total",
		Help:      "Column values written in place by updates and deletes, by database.",
	}, []string{"db"})

	metricsRolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "fragmenter_rolls_total",
		Help:      "Update statements terminated, by outcome.",
	}, []string{"outcome"})

	metricsUpdateSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "fragmenter_update_seconds",
		Help:      "Time spent writing one column of one fragment.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)

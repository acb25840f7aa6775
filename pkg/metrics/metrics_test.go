// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sclogin.
//
// go-sclogin is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(ScenarioRunsTotal.WithLabelValues("login/with-card", "local-user", "pass"))

	RecordRun("login/with-card", "local-user", "pass", 3*time.Second)

	after := testutil.ToFloat64(ScenarioRunsTotal.WithLabelValues("login/with-card", "local-user", "pass"))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestRecordError(t *testing.T) {
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("timeout"))

	RecordError("timeout")

	after := testutil.ToFloat64(ErrorsTotal.WithLabelValues("timeout"))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

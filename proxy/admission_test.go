/*
Copyright 2023 - 2025 Dima Krasner
Copyright 2022 Omar Polo

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionBlocksBeyondLimit(t *testing.T) {
	a := &Admission{limit: 2}

	require.True(t, a.TryAcquire())
	require.True(t, a.TryAcquire())
	assert.False(t, a.TryAcquire())
	assert.EqualValues(t, 2, a.Inflight())

	a.Release()
	assert.True(t, a.TryAcquire())
}

func TestNewAdmissionRespectsMaxInflightCap(t *testing.T) {
	a := NewAdmission(5, 1)
	assert.LessOrEqual(t, a.Limit(), int64(1))
}

func TestNewAdmissionNeverNegative(t *testing.T) {
	a := NewAdmission(1<<30, 100)
	assert.Greater(t, a.Limit(), int64(0))
}

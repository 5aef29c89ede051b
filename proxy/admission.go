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
	"sync/atomic"
	"syscall"
)

// Admission bounds how many Clients may be in flight at once: it
// keeps a margin of spare file descriptors available for the
// listening socket and the log files even when every worker is
// saturated with origin connections.
type Admission struct {
	limit    int64
	inflight atomic.Int64
}

// NewAdmission computes the inflight ceiling from the process's open
// file descriptor limit, reserved by fdReserve descriptors and capped
// at maxInflight. Each in-flight Client is assumed to hold roughly one
// descriptor (the origin socket); the FastCGI connection descriptor is
// accounted for separately by the caller.
func NewAdmission(fdReserve, maxInflight int) *Admission {
	limit := int64(maxInflight)

	var rlimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlimit); err == nil {
		if avail := int64(rlimit.Cur) - int64(fdReserve); avail > 0 && avail < limit {
			limit = avail
		}
	}

	return &Admission{limit: limit}
}

// TryAcquire reserves one slot, returning false if the ceiling is
// already reached.
func (a *Admission) TryAcquire() bool {
	for {
		cur := a.inflight.Load()
		if cur >= a.limit {
			return false
		}
		if a.inflight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns a slot reserved by a successful TryAcquire.
func (a *Admission) Release() {
	a.inflight.Add(-1)
}

// Inflight reports the current number of admitted Clients.
func (a *Admission) Inflight() int64 { return a.inflight.Load() }

// Limit reports the computed admission ceiling.
func (a *Admission) Limit() int64 { return a.limit }

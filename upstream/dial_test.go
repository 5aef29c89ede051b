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

package upstream

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &DialError{Op: "connect", Err: inner}
	assert.True(t, errors.Is(err, inner))
	assert.Contains(t, err.Error(), "connect")
}

// A resolver that cannot reach any server must make Dial fail promptly
// with a resolve-phase DialError, never hang indefinitely.
func TestDialResolveFailureReturnsPromptly(t *testing.T) {
	d := NewDialer(200*time.Millisecond, time.Second, 0)
	d.Resolver = &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, errors.New("resolver unreachable in test sandbox")
		},
	}

	start := time.Now()
	_, err := d.Dial(context.Background(), "unresolvable.invalid", "1965", "unresolvable.invalid", false)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var dialErr *DialError
	require.ErrorAs(t, err, &dialErr)
	assert.Equal(t, "resolve", dialErr.Op)
}

func TestDialAdmissionControlBlocksBeyondLimit(t *testing.T) {
	d := NewDialer(time.Second, time.Second, 1)
	require.NotNil(t, d.DialSem)

	require.NoError(t, d.DialSem.Acquire(context.Background(), 1))
	defer d.DialSem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.DialSem.Acquire(ctx, 1)
	assert.Error(t, err)
}

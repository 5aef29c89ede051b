/*
Copyright 2023 - 2025 Dima Krasner

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

package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFillDefaults(t *testing.T) {
	var c Config
	c.FillDefaults()

	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, 5, c.FDReserve)
	assert.Equal(t, 5*time.Second, c.ConnectTimeout)
	assert.Equal(t, 1026, c.MaxResponseHeaderSize)
}

func TestFillDefaultsKeepsExplicitValues(t *testing.T) {
	c := Config{Workers: 7, ConnectTimeout: time.Minute}
	c.FillDefaults()

	assert.Equal(t, 7, c.Workers)
	assert.Equal(t, time.Minute, c.ConnectTimeout)
}

func TestTableMatchFirstWins(t *testing.T) {
	table := Table{
		{Host: "example.com", ProxyName: "first"},
		{Host: "example.com", ProxyName: "second"},
		{Host: "other.com", ProxyName: "third"},
	}

	pc, ok := table.Match("example.com")
	assert.True(t, ok)
	assert.Equal(t, "first", pc.ProxyName)

	_, ok = table.Match("unknown.com")
	assert.False(t, ok)
}

func TestProxyConfigFlags(t *testing.T) {
	pc := ProxyConfig{Flags: NoTLS | NoImgPrv}
	assert.True(t, pc.NoTLSSet())
	assert.True(t, pc.NoImgPrvSet())
	assert.False(t, pc.NoNavbarSet())
	assert.False(t, pc.NoFooterSet())
}

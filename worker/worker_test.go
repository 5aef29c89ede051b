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

package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarpolo/galileo/cfg"
	"github.com/omarpolo/galileo/proxy"
	"github.com/omarpolo/galileo/tmpl"
)

func TestDecodeRequestGet(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/foo?q=1", nil)
	req, err := decodeRequest(r)
	require.NoError(t, err)
	assert.Equal(t, proxy.MethodGet, req.Method)
	assert.Equal(t, "example.com", req.ServerName)
	assert.Equal(t, "/foo", req.PathInfo)
	assert.Equal(t, "q=1", req.Query)
}

func TestDecodeRequestPostEncodesBody(t *testing.T) {
	form := url.Values{"q": {"hello"}}
	r := httptest.NewRequest(http.MethodPost, "http://example.com/search", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := decodeRequest(r)
	require.NoError(t, err)
	assert.Equal(t, proxy.MethodPost, req.Method)
	assert.Equal(t, "q=hello", string(req.Body))
}

func TestSupervisorHandleRoutesUnknownHost(t *testing.T) {
	w := cfg.NewStaticTable(cfg.Table{})

	c := &cfg.Config{}
	c.FillDefaults()

	sup := NewSupervisor(nil, w, c, tmpl.Default{})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://unknown.example/", nil)
	sup.Handle(rec, r)

	assert.Equal(t, 501, rec.Code)
}

func TestSupervisorApplyBuildsTableOnCfgDone(t *testing.T) {
	w := cfg.NewStaticTable(cfg.Table{})

	c := &cfg.Config{}
	c.FillDefaults()

	sup := NewSupervisor(nil, w, c, tmpl.Default{})

	ctx := context.Background()
	sup.Apply(ctx, Message{Kind: CfgSrv, Proxy: &cfg.ProxyConfig{Host: "a.example"}})
	sup.Apply(ctx, Message{Kind: CfgSrv, Proxy: &cfg.ProxyConfig{Host: "b.example"}})
	require.Len(t, sup.Table.Table(), 0, "entries must not be visible before CfgDone")

	sup.Apply(ctx, Message{Kind: CfgDone})
	require.Len(t, sup.Table.Table(), 2)

	_, ok := sup.Table.Table().Match("a.example")
	assert.True(t, ok)

	sup.Apply(ctx, Message{Kind: CtlReset})
	assert.Len(t, sup.Table.Table(), 0)
}

func TestSupervisorHandleRejectsWhenSaturated(t *testing.T) {
	w := cfg.NewStaticTable(cfg.Table{})

	c := &cfg.Config{}
	c.FillDefaults()
	c.MaxInflight = 1

	sup := NewSupervisor(nil, w, c, tmpl.Default{})
	require.True(t, sup.Admission.TryAcquire())

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	sup.Handle(rec, r)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

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

// Package worker runs the fixed pool of proxy workers: each worker
// serves accepted FastCGI connections with a goroutine-per-request
// Client, with no shared mutable state beyond the admission counter
// and the atomically-swapped proxy table.
package worker

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/fcgi"

	"github.com/omarpolo/galileo/cfg"
	"github.com/omarpolo/galileo/proxy"
	"github.com/omarpolo/galileo/sink"
	"github.com/omarpolo/galileo/tmpl"
	"github.com/omarpolo/galileo/upstream"
)

// MessageKind names the worker IPC envelope: configuration handoff
// and control messages a parent process sends each worker. The
// parent/child privilege-separation harness lives outside this
// module; this enumerates the messages a Supervisor reacts to.
type MessageKind int

const (
	CfgSrv MessageKind = iota
	CfgSock
	CfgDone
	CtlStart
	CtlReset
)

// Message is one worker IPC envelope. Proxy is set for CfgSrv;
// Listener is set for CfgSock.
type Message struct {
	Kind     MessageKind
	Proxy    *cfg.ProxyConfig
	Listener net.Listener
}

// Supervisor owns the proxy table, admission controller and dialer
// shared by every worker goroutine, and serves FastCGI requests from a
// listener until its context is canceled.
type Supervisor struct {
	Log       *slog.Logger
	Table     *cfg.Watcher
	Config    *cfg.Config
	Dialer    *upstream.Dialer
	Admission *proxy.Admission
	Fragments tmpl.Fragments

	// pending accumulates CfgSrv entries until CfgDone swaps them in.
	pending cfg.Table

	// listener is the descriptor handed over by CfgSock, served once
	// CtlStart arrives.
	listener net.Listener
}

// NewSupervisor builds a Supervisor from a loaded configuration.
func NewSupervisor(log *slog.Logger, table *cfg.Watcher, c *cfg.Config, frags tmpl.Fragments) *Supervisor {
	return &Supervisor{
		Log:       log,
		Table:     table,
		Config:    c,
		Dialer:    upstream.NewDialer(c.ConnectTimeout, c.TLSHandshakeTimeout, c.MaxOutstandingDials),
		Admission: proxy.NewAdmission(c.FDReserve, c.MaxInflight),
		Fragments: frags,
	}
}

// Handle implements net/http/fcgi's http.Handler contract: it decodes
// the CGI-shaped request, routes it, and drives it through Serve,
// subject to the admission ceiling.
func (sup *Supervisor) Handle(w http.ResponseWriter, r *http.Request) {
	if !sup.Admission.TryAcquire() {
		http.Error(w, "too many requests in flight", http.StatusServiceUnavailable)
		return
	}
	defer sup.Admission.Release()

	req, err := decodeRequest(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s := sink.NewHTTP(w)

	client, cerr := proxy.NewClient(req, sup.Table.Table(), sup.Log)
	if cerr != nil {
		proxy.RenderError(s, sup.Fragments, cerr)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sup.Config.GeminiRequestTimeout)
	defer cancel()

	proxy.Serve(ctx, client, sup.Config, sup.Dialer, s, sup.Fragments)
}

// decodeRequest maps net/http's request shape onto the decoded CGI
// variables the proxy expects; net/http/fcgi has already consumed the
// record framing by the time a request gets here.
func decodeRequest(r *http.Request) (proxy.Request, error) {
	method := proxy.MethodUnknown
	switch r.Method {
	case http.MethodGet:
		method = proxy.MethodGet
	case http.MethodPost:
		method = proxy.MethodPost
	}

	req := proxy.Request{
		ServerName: r.Host,
		ScriptName: scriptName(r),
		PathInfo:   r.URL.Path,
		Query:      r.URL.RawQuery,
		Method:     method,
	}

	if method == proxy.MethodPost {
		if err := r.ParseForm(); err != nil {
			return proxy.Request{}, err
		}
		body := r.PostForm.Encode()
		req.Body = []byte(body)
		req.BodyLength = len(body)
	}

	return req, nil
}

func scriptName(r *http.Request) string {
	if v := r.Header.Get("X-Script-Name"); v != "" {
		return v
	}
	return ""
}

// ListenAndServe runs the FastCGI accept loop against ln until ctx is
// canceled: one goroutine per accepted connection (net/http/fcgi's
// own model), fanning out into sup.Handle per request.
func ListenAndServe(ctx context.Context, ln net.Listener, sup *Supervisor) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	err := fcgi.Serve(ln, http.HandlerFunc(sup.Handle))
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Apply processes one worker IPC message. CfgSrv entries accumulate
// until CfgDone swaps them in as the new proxy table; CtlReset throws
// away both the pending and the active configuration so a fresh
// handoff can follow.
func (sup *Supervisor) Apply(ctx context.Context, msg Message) {
	switch msg.Kind {
	case CfgSrv:
		if msg.Proxy != nil {
			sup.pending = append(sup.pending, *msg.Proxy)
		}

	case CfgSock:
		sup.listener = msg.Listener

	case CfgDone:
		sup.Table.Store(sup.pending)
		sup.pending = nil
		if sup.Log != nil {
			sup.Log.Info("Configuration applied", "proxies", len(sup.Table.Table()), "inflight", sup.Admission.Inflight())
		}

	case CtlStart:
		if sup.listener == nil {
			if sup.Log != nil {
				sup.Log.Warn("Start requested without a listener")
			}
			return
		}
		go func() {
			if err := ListenAndServe(ctx, sup.listener, sup); err != nil && sup.Log != nil {
				sup.Log.Error("Worker exited", "error", err)
			}
		}()

	case CtlReset:
		sup.pending = nil
		sup.Table.Store(cfg.Table{})
		if sup.Log != nil {
			sup.Log.Info("Configuration reset")
		}
	}
}

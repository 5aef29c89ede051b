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

// Package proxy implements the per-request Client: the request
// validation and host routing that build it, the lifecycle guarantee
// that releases its resources exactly once on every exit path, the
// link/redirect resolver, and the orchestration that drives a Client
// through the resolver, connector, TLS transport, protocol engine,
// translator and response sink.
package proxy

import (
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/omarpolo/galileo/cfg"
)

// Method is the incoming CGI request method, restricted to the two
// the core understands.
type Method int

const (
	MethodGet Method = iota
	MethodPost
	MethodUnknown
)

// Request holds the already-decoded CGI variables the FastCGI layer
// hands over; record framing is not this package's concern.
type Request struct {
	ServerName string
	ScriptName string
	PathInfo   string
	Query      string
	Method     Method

	// Body is the request body, when present. A nonzero BodyLength
	// with a nil Body is malformed and rejected up front.
	Body       []byte
	BodyLength int
}

// Client owns every resource associated with one in-flight request.
// There is no reuse: a new Client is constructed per request and
// released exactly once.
type Client struct {
	ID  string
	Req Request
	PC  *cfg.ProxyConfig
	Log *slog.Logger

	releaseOnce sync.Once
	closers     []io.Closer
}

// NewClient validates req, routes it against table, and returns a
// ready Client or the *Error to render in its place.
func NewClient(req Request, table cfg.Table, log *slog.Logger) (*Client, *Error) {
	if req.BodyLength > 0 && req.Body == nil {
		return nil, newError(BadRequest, "body length set without a body", nil)
	}

	if req.PathInfo == "" {
		return nil, newError(NotImplemented, "empty PATH_INFO", nil)
	}

	pc, ok := table.Match(req.ServerName)
	if !ok {
		return nil, newError(NotImplemented, "unknown server: "+req.ServerName, nil)
	}

	id := uuid.NewString()
	clientLog := log
	if clientLog != nil {
		clientLog = clientLog.With(slog.Group("request", "id", id, "host", req.ServerName, "path", req.PathInfo))
	}

	return &Client{ID: id, Req: req, PC: pc, Log: clientLog}, nil
}

// addCloser registers a resource to be closed on release, in the
// order added; release runs them in reverse, most recently acquired
// first.
func (c *Client) addCloser(closer io.Closer) {
	c.closers = append(c.closers, closer)
}

// release runs the registered closers exactly once, regardless of how
// many times it is called and which exit path called it first.
func (c *Client) release() {
	c.releaseOnce.Do(func() {
		for i := len(c.closers) - 1; i >= 0; i-- {
			c.closers[i].Close()
		}
		if c.Log != nil {
			c.Log.Debug("Released client", "closers", len(c.closers))
		}
	})
}

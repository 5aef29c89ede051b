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

// Package cfg defines the Galileo configuration file format and defaults.
package cfg

import "time"

// Config holds the ambient, worker-wide settings: everything that isn't
// part of a single ProxyConfig entry.
type Config struct {
	Workers     int
	FDReserve   int
	MaxInflight int

	ConnectTimeout time.Duration

	TLSHandshakeTimeout time.Duration
	TLSReadTimeout      time.Duration
	TLSWriteTimeout     time.Duration

	GeminiRequestTimeout time.Duration

	MaxResponseHeaderSize int

	MaxOutstandingDials int
}

// FillDefaults replaces missing or invalid settings with defaults.
func (c *Config) FillDefaults() {
	if c.Workers <= 0 {
		c.Workers = 3
	}

	if c.FDReserve <= 0 {
		c.FDReserve = 5
	}

	if c.MaxInflight <= 0 {
		c.MaxInflight = 256
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}

	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = 10 * time.Second
	}

	if c.TLSReadTimeout <= 0 {
		c.TLSReadTimeout = 30 * time.Second
	}

	if c.TLSWriteTimeout <= 0 {
		c.TLSWriteTimeout = 30 * time.Second
	}

	if c.GeminiRequestTimeout <= 0 {
		c.GeminiRequestTimeout = 45 * time.Second
	}

	if c.MaxResponseHeaderSize <= 0 {
		c.MaxResponseHeaderSize = 1026
	}

	if c.MaxOutstandingDials <= 0 {
		c.MaxOutstandingDials = 16
	}
}

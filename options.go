// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lsv2

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the client.
type Option func(*clientOptions)

type clientOptions struct {
	// Connection settings
	timeout       time.Duration
	safeMode      bool
	compatibility bool

	// Callbacks
	onConnect    func()
	onDisconnect func(error)

	// Logging
	logger *slog.Logger
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		timeout:  DefaultTimeout,
		safeMode: true,
		logger:   slog.Default(),
	}
}

// WithTimeout sets the socket timeout for connect and every telegram.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithSafeMode restricts logins and system commands to the safe allow lists.
// Safe mode is on by default.
func WithSafeMode(enable bool) Option {
	return func(o *clientOptions) {
		o.safeMode = enable
	}
}

// WithCompatibilityMode skips buffer negotiation and keeps 256 byte telegrams.
func WithCompatibilityMode(enable bool) Option {
	return func(o *clientOptions) {
		o.compatibility = enable
	}
}

// WithOnConnect sets a callback to be called once the connection is
// negotiated.
func WithOnConnect(fn func()) Option {
	return func(o *clientOptions) {
		o.onConnect = fn
	}
}

// WithOnDisconnect sets a callback to be called when the connection is lost.
func WithOnDisconnect(fn func(error)) Option {
	return func(o *clientOptions) {
		o.onDisconnect = fn
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

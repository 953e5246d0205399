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
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Login acquires a privilege level. Requesting an active login succeeds
// without sending anything. In safe mode only SafeLogins may be requested.
func (c *Client) Login(ctx context.Context, login Login, password string) error {
	if c.hasLogin(login) {
		return nil
	}
	if !c.loginAllowed(login) {
		return &Error{Kind: KindInput, Op: "login",
			Err: fmt.Errorf("%w: %s", ErrLoginNotAllowed, login)}
	}

	payload := encodeString(string(login))
	if password != "" {
		payload = append(payload, encodeString(password)...)
	}

	if _, err := c.exchange(ctx, CmdLogin, payload, RspOK); err != nil {
		return newError(KindProtocol, "login "+string(login), err)
	}

	c.mu.Lock()
	c.logins[login] = struct{}{}
	c.mu.Unlock()

	c.logger.Debug("login granted", slog.String("login", string(login)))
	return nil
}

// Logout drops a privilege level. An empty login drops all of them.
// Dropping an inactive login is a no-op.
func (c *Client) Logout(ctx context.Context, login Login) error {
	var payload []byte
	if login == "" {
		if len(c.ActiveLogins()) == 0 {
			return nil
		}
	} else {
		if !c.hasLogin(login) {
			return nil
		}
		payload = encodeString(string(login))
	}

	if _, err := c.exchange(ctx, CmdLogout, payload, RspOK); err != nil {
		return newError(KindProtocol, "logout", err)
	}

	c.mu.Lock()
	if login == "" {
		c.logins = make(map[Login]struct{})
	} else {
		delete(c.logins, login)
	}
	c.mu.Unlock()

	c.logger.Debug("logout", slog.String("login", string(login)))
	return nil
}

// SetSafeMode toggles the client side allow lists. Active logins are kept.
func (c *Client) SetSafeMode(enable bool) {
	c.mu.Lock()
	c.safeMode = enable
	c.mu.Unlock()
}

// SafeMode reports whether the allow lists are enforced.
func (c *Client) SafeMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.safeMode
}

// ActiveLogins returns the granted logins in sorted order.
func (c *Client) ActiveLogins() []Login {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Login, 0, len(c.logins))
	for l := range c.logins {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Client) hasLogin(login Login) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.logins[login]
	return ok
}

func (c *Client) loginAllowed(login Login) bool {
	allowed := AllLogins
	if c.SafeMode() {
		allowed = SafeLogins
	}
	for _, l := range allowed {
		if l == login {
			return true
		}
	}
	return false
}

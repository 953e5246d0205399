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
	"encoding/binary"
	"log/slog"
)

// ScopeSignals lists every recordable signal of every scope channel.
func (c *Client) ScopeSignals(ctx context.Context) ([]*ScopeSignal, error) {
	if err := c.Login(ctx, LoginScope, ""); err != nil {
		return nil, newError(KindProtocol, "scope signals", err)
	}
	blocks, err := c.exchangeBlock(ctx, CmdScopeChannels, nil, RspScopeChannels)
	if err != nil {
		return nil, newError(KindProtocol, "scope signals", err)
	}

	var signals []*ScopeSignal
	for _, b := range blocks {
		s, err := DecodeScopeChannels(b)
		if err != nil {
			return nil, newError(KindDecode, "scope signals", err)
		}
		signals = append(signals, s...)
	}
	return signals, nil
}

// SelectScopeSignals selects the signals to record at interval
// microseconds. The interval must not be shorter than the minimum interval
// of any selected signal.
func (c *Client) SelectScopeSignals(ctx context.Context, signals []*ScopeSignal, interval uint32) error {
	if len(signals) == 0 {
		return inputError("no scope signals given")
	}
	for _, s := range signals {
		if interval < s.MinInterval {
			return inputError("interval %d below minimum %d of %s/%s",
				interval, s.MinInterval, s.ChannelName, s.SignalName)
		}
	}
	if err := c.Login(ctx, LoginScope, ""); err != nil {
		return newError(KindProtocol, "select scope signals", err)
	}

	payload := make([]byte, 6, 6+4*len(signals))
	binary.BigEndian.PutUint32(payload[0:4], interval)
	binary.BigEndian.PutUint16(payload[4:6], uint16(len(signals)))
	for _, s := range signals {
		payload = binary.BigEndian.AppendUint16(payload, s.Channel)
		payload = binary.BigEndian.AppendUint16(payload, s.Signal)
	}

	if _, err := c.exchange(ctx, CmdSelectScope, payload, RspOK); err != nil {
		return newError(KindProtocol, "select scope signals", err)
	}
	return nil
}

// ScopeSignalDetails fills unit, factor and offset of the selected signals.
func (c *Client) ScopeSignalDetails(ctx context.Context, signals []*ScopeSignal) error {
	data, err := c.exchange(ctx, CmdScopeDetails, nil, RspScopeDetails)
	if err != nil {
		return newError(KindProtocol, "scope signal details", err)
	}
	if err := applySignalDetails(data, signals); err != nil {
		return newError(KindDecode, "scope signal details", err)
	}
	return nil
}

// StreamScope reads sample blocks for the selected signals and passes each
// to fn. Recording stops when fn returns false or ctx is done; the stream is
// then broken off with T_BD.
func (c *Client) StreamScope(ctx context.Context, signals []*ScopeSignal, fn func(*ScopeReading) bool) error {
	if len(signals) == 0 {
		return inputError("no scope signals given")
	}

	code, payload := CmdScopeData, []byte(nil)
	for {
		data, err := c.exchange(ctx, code, payload, RspScopeData)
		if err != nil {
			return newError(KindProtocol, "stream scope", err)
		}
		reading, err := DecodeScopeReading(data, len(signals))
		if err != nil {
			c.breakScope(ctx)
			return newError(KindDecode, "stream scope", err)
		}
		c.metrics.ScopeReadings.Add(1)
		if !fn(reading) {
			return c.breakScope(ctx)
		}
		if err := ctx.Err(); err != nil {
			c.breakScope(ctx)
			return newError(KindTransport, "stream scope", err)
		}
		code = RspOK
	}
}

func (c *Client) breakScope(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.timeout)
	defer cancel()

	if _, err := c.exchange(ctx, RspBreak, nil, RspFinished); err != nil {
		c.logger.Debug("scope break failed", slog.String("error", err.Error()))
		return newError(KindProtocol, "stop scope", err)
	}
	return nil
}

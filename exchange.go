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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgeo-scada/lsv2/internal/transport"
)

// send writes one telegram without waiting for a reply.
func (c *Client) send(ctx context.Context, code Code, payload []byte) error {
	if !c.transport.IsConnected() {
		return &Error{Kind: KindTransport, Err: ErrNotConnected}
	}

	t := Telegram{Code: code, Payload: payload}
	frame := t.Encode()

	c.logger.Debug("sending telegram",
		slog.String("code", code.String()),
		slog.Int("len", len(payload)))

	if err := c.transport.Write(ctx, frame); err != nil {
		return c.transportError(err)
	}
	c.metrics.BytesSent.Add(int64(len(frame)))
	return nil
}

// receive reads one telegram.
func (c *Client) receive(ctx context.Context) (*Telegram, error) {
	data, err := c.transport.Read(ctx)
	if err != nil {
		return nil, c.transportError(err)
	}
	c.metrics.BytesReceived.Add(int64(len(data)))

	var t Telegram
	if err := t.Decode(data); err != nil {
		return nil, &Error{Kind: KindProtocol, Err: err}
	}

	c.logger.Debug("received telegram",
		slog.String("code", t.Code.String()),
		slog.Int("len", len(t.Payload)))
	return &t, nil
}

// roundTrip sends one telegram and reads exactly one reply.
func (c *Client) roundTrip(ctx context.Context, code Code, payload []byte) (*Telegram, error) {
	if err := c.send(ctx, code, payload); err != nil {
		return nil, err
	}
	return c.receive(ctx)
}

// exchange performs one command/response cycle and returns the payload of
// the expected response. With expected set to RspNone the telegram is sent
// and no reply is read.
func (c *Client) exchange(ctx context.Context, code Code, payload []byte, expected Code) ([]byte, error) {
	start := time.Now()
	cm := c.metrics.ForCommand(code)
	c.metrics.RequestsTotal.Add(1)
	cm.Requests.Add(1)

	data, err := c.doExchange(ctx, code, payload, expected)
	if err != nil {
		c.metrics.RequestsErrors.Add(1)
		cm.Errors.Add(1)
		return nil, err
	}

	duration := time.Since(start)
	c.metrics.RequestsSuccess.Add(1)
	c.metrics.Latency.Observe(duration)
	cm.Latency.Observe(duration)
	return data, nil
}

func (c *Client) doExchange(ctx context.Context, code Code, payload []byte, expected Code) ([]byte, error) {
	if expected == RspNone {
		return nil, c.send(ctx, code, payload)
	}
	reply, err := c.roundTrip(ctx, code, payload)
	if err != nil {
		return nil, err
	}
	return c.classify(reply, expected)
}

// exchangeBlock sends a command and keeps sending the continue telegram
// while the controller answers with expected. The payloads are returned in
// order once the transfer finished telegram arrives.
func (c *Client) exchangeBlock(ctx context.Context, code Code, payload []byte, expected Code) ([][]byte, error) {
	c.metrics.RequestsTotal.Add(1)
	cm := c.metrics.ForCommand(code)
	cm.Requests.Add(1)
	start := time.Now()

	blocks, err := c.doExchangeBlock(ctx, code, payload, expected)
	if err != nil {
		c.metrics.RequestsErrors.Add(1)
		cm.Errors.Add(1)
		return nil, err
	}

	duration := time.Since(start)
	c.metrics.RequestsSuccess.Add(1)
	c.metrics.Latency.Observe(duration)
	cm.Latency.Observe(duration)
	return blocks, nil
}

func (c *Client) doExchangeBlock(ctx context.Context, code Code, payload []byte, expected Code) ([][]byte, error) {
	reply, err := c.roundTrip(ctx, code, payload)
	if err != nil {
		return nil, err
	}

	var blocks [][]byte
	for {
		switch reply.Code {
		case expected:
			blocks = append(blocks, reply.Payload)
		case RspFinished:
			if len(reply.Payload) > 0 {
				return nil, &Error{Kind: KindProtocol, Err: fmt.Errorf("%w: %s carries %d bytes",
					ErrUnexpectedData, reply.Code, len(reply.Payload))}
			}
			return blocks, nil
		default:
			_, err := c.classify(reply, expected)
			return nil, err
		}

		reply, err = c.roundTrip(ctx, RspOK, nil)
		if err != nil {
			return nil, err
		}
	}
}

// classify maps a reply to its payload or to the matching error.
func (c *Client) classify(reply *Telegram, expected Code) ([]byte, error) {
	switch {
	case reply.Code == RspError || reply.Code == RspBreak:
		if len(reply.Payload) < 2 {
			return nil, &Error{Kind: KindProtocol, Err: fmt.Errorf("%w: %s without error code",
				ErrInvalidFrame, reply.Code)}
		}
		appErr := NewApplicationError(reply.Payload[0], reply.Payload[1])
		c.metrics.ErrorTelegrams.Add(1)
		c.setLastError(appErr)
		c.logger.Debug("controller error",
			slog.Int("class", int(appErr.Class)),
			slog.Int("code", int(appErr.Code)),
			slog.String("key", appErr.Key))
		return nil, &Error{Kind: KindApplication, Err: appErr}
	case reply.Code == expected:
		return reply.Payload, nil
	case !reply.Code.IsResponse():
		return nil, &Error{Kind: KindProtocol, Err: fmt.Errorf("%w: %q", ErrUnknownTelegram, string(reply.Code))}
	default:
		return nil, &Error{Kind: KindProtocol, Err: fmt.Errorf("%w: expected %s, got %s",
			ErrUnexpectedResponse, expected, reply.Code)}
	}
}

// transportError converts a transport failure and drops the session if the
// socket was closed underneath.
func (c *Client) transportError(err error) error {
	out := wrapTransportError(err)
	if !c.transport.IsConnected() {
		c.handleDisconnect(err)
	}
	return out
}

func wrapTransportError(err error) *Error {
	switch {
	case errors.Is(err, transport.ErrTelegramTooLarge):
		return &Error{Kind: KindTransport, Err: fmt.Errorf("%w: %v", ErrTelegramTooLarge, err)}
	case errors.Is(err, transport.ErrNotConnected):
		return &Error{Kind: KindTransport, Err: ErrNotConnected}
	case errors.Is(err, transport.ErrHostResolution):
		return &Error{Kind: KindTransport, Err: fmt.Errorf("%w: %v", ErrHostResolution, err)}
	case errors.Is(err, transport.ErrInvalidFrame):
		return &Error{Kind: KindProtocol, Err: fmt.Errorf("%w: %v", ErrInvalidFrame, err)}
	default:
		return &Error{Kind: KindTransport, Err: err}
	}
}

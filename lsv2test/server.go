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

// Package lsv2test provides an in-process LSV2 controller for tests.
package lsv2test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/edgeo-scada/lsv2"
)

// Handler answers one request telegram. It may return no telegram at all,
// which models the controller staying silent.
type Handler interface {
	Handle(req *lsv2.Telegram) []*lsv2.Telegram
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *lsv2.Telegram) []*lsv2.Telegram

// Handle calls f(req).
func (f HandlerFunc) Handle(req *lsv2.Telegram) []*lsv2.Telegram {
	return f(req)
}

// ServerMetrics holds server-side metrics.
type ServerMetrics struct {
	RequestsTotal lsv2.Counter
	RepliesTotal  lsv2.Counter
	ActiveConns   lsv2.Counter
	TotalConns    lsv2.Counter
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is a TCP listener speaking LSV2 framing in front of a Handler.
type Server struct {
	handler Handler
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   int32
	wg       sync.WaitGroup
	metrics  *ServerMetrics
}

// NewServer creates a new server for handler.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	s := &Server{
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		conns:   make(map[net.Conn]struct{}),
		metrics: &ServerMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on a random loopback port and serves in the background.
func (s *Server) Start() (string, error) {
	return s.Listen("127.0.0.1:0")
}

// Listen serves on addr in the background and returns the bound address.
func (s *Server) Listen(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go s.serve(listener)
	return listener.Addr().String(), nil
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *ServerMetrics {
	return s.metrics
}

func (s *Server) serve(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.closed) == 1 {
				return
			}
			s.logger.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.metrics.ActiveConns.Add(1)
		s.metrics.TotalConns.Add(1)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close stops the listener and drops every connection.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in connection handler",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}

		s.wg.Done()
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.metrics.ActiveConns.Add(-1)
		s.mu.Unlock()
	}()

	for {
		req, err := lsv2.ReadTelegram(conn, lsv2.MaxBufferSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && atomic.LoadInt32(&s.closed) == 0 {
				s.logger.Debug("read error", slog.String("error", err.Error()))
			}
			return
		}
		s.metrics.RequestsTotal.Add(1)

		for _, reply := range s.handler.Handle(req) {
			if _, err := conn.Write(reply.Encode()); err != nil {
				s.logger.Debug("write error", slog.String("error", err.Error()))
				return
			}
			s.metrics.RepliesTotal.Add(1)
		}
	}
}

package leaseserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/log"
	"github.com/nextdhcp/nextlease/core/wire"
	"golang.org/x/sync/errgroup"
)

// readTimeout bounds each blocking read so a stopped server is noticed
// even if no datagrams arrive
const readTimeout = time.Second

// Server serves lease requests received via UDP on a single address. Each
// datagram is served in it's own goroutine while the expirer of the server
// reclaims expired leases in the background
type Server struct {
	cfg *Config
	wg  sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	connLock sync.Mutex
	conn     net.PacketConn
}

// NewServer returns a new lease server for cfg. The middleware chain and
// the lease table of cfg must have been set up already
func NewServer(cfg *Config) (*Server, error) {
	if cfg.chain == nil || cfg.Table == nil || cfg.Expirer == nil {
		return nil, fmt.Errorf("server %s has not been set up", cfg.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Serve is a NO-OP as TCP is not supported. It implements the
// caddy.TCPServer interface
func (s *Server) Serve(l net.Listener) error {
	return nil
}

// Listen does nothing as TCP is not supported. It implements the
// caddy.TCPServer interface
func (s *Server) Listen() (net.Listener, error) {
	return nil, nil
}

// ListenPacket opens the UDP socket of the server. It implements the
// caddy.UDPServer interface
func (s *Server) ListenPacket() (net.PacketConn, error) {
	return net.ListenPacket("udp4", s.cfg.Addr)
}

// ServePacket serves requests received on c and runs the expirer. It
// blocks until the server is stopped and all in-flight requests are
// served. It implements the caddy.UDPServer interface
func (s *Server) ServePacket(c net.PacketConn) error {
	s.connLock.Lock()
	s.conn = c
	s.connLock.Unlock()

	grp, ctx := errgroup.WithContext(s.ctx)

	grp.Go(func() error {
		return s.cfg.Expirer.Run(ctx)
	})

	grp.Go(func() error {
		// the expirer must not outlive the read loop
		defer s.cancel()
		return s.readLoop(ctx, c)
	})

	err := grp.Wait()
	s.wg.Wait()

	return err
}

func (s *Server) readLoop(ctx context.Context, c net.PacketConn) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := c.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		payload := make([]byte, wire.MaxMessageSize)
		n, addr, err := c.ReadFrom(payload)

		if n > 0 {
			s.wg.Add(1)
			go s.serveAndLog(ctx, c, payload[:n], addr)
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			s.cfg.logger.Warnf("failed to read request: %s", err)
		}
	}
}

// Stop stops the server. It implements the caddy.Stopper interface
func (s *Server) Stop() error {
	s.cancel()

	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil

	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Address returns the address the server is listening on. It implements
// the caddy.GracefulServer interface
func (s *Server) Address() string {
	return s.cfg.Addr
}

// WrapListener returns l as TCP is not supported. It implements the
// caddy.GracefulServer interface
func (s *Server) WrapListener(l net.Listener) net.Listener {
	return l
}

// OnStartupComplete is called when all serves of the same instance have
// been started. It implements the caddy.AfterStartup interface
func (s *Server) OnStartupComplete() {
	if caddy.Quiet {
		return
	}

	info := getStartupInfo([]*Config{s.cfg})
	if info != "" {
		// Print not Println because info contains a trailing new line
		fmt.Print(info)
	}
}

func (s *Server) serveAndLog(ctx context.Context, c net.PacketConn, payload []byte, addr net.Addr) {
	defer s.wg.Done()
	// In any case we must not panic while serving requests
	defer func() {
		if x := recover(); x != nil {
			s.cfg.logger.Errorf("caught panic while serving a request from %s: %v", addr, x)
			s.cfg.logger.Debug(string(debug.Stack()))
		}
	}()

	if err := s.serve(ctx, c, payload, addr); err != nil {
		s.cfg.logger.Warnf("failed to serve request from %s: %s", addr, err)
	}
}

func (s *Server) serve(ctx context.Context, c net.PacketConn, payload []byte, addr net.Addr) error {
	req, err := wire.DecodeRequest(payload)
	if err != nil {
		s.cfg.logger.Debugf("dropping message from %s: %s", addr, err)
		return nil
	}

	ctx = WithPeer(ctx, addr)
	ctx = log.WithRequest(ctx, addr, req)

	logger := log.With(ctx, s.cfg.logger)
	logger.Debug("-> request")

	var res wire.Response

	err = s.cfg.chain.ServeLease(ctx, req, &res)
	if errors.Is(err, ErrNoResponse) {
		return nil
	}
	if err != nil {
		return err
	}

	if res.Status == "" {
		logger.Debug("no handler created a response, dropping")
		return nil
	}

	response, err := wire.EncodeResponse(&res)
	if err != nil {
		return err
	}

	logger.Debugf("<- %s", res.Status)

	_, err = c.WriteTo(response, addr)
	return err
}

// Compile-Time check
var (
	_ caddy.Server         = &Server{}
	_ caddy.GracefulServer = &Server{}
	_ caddy.AfterStartup   = &Server{}
)

package abciserver

import (
	"errors"
	"fmt"
	"os"
	"strings"

	abciserver "github.com/tendermint/tendermint/abci/server"
	"github.com/tendermint/tendermint/libs/service"

	"github.com/blockberries/ledgerberry/abi"
	"github.com/blockberries/ledgerberry/logging"
)

// Transports.
const (
	TransportSocket = "socket"
	TransportGRPC   = "grpc"
)

// Server errors.
var (
	ErrNoApplication = errors.New("ABCI application cannot be nil")
	ErrNoAddress     = errors.New("listen address cannot be empty")
	ErrTransport     = errors.New("unknown ABCI transport")
)

// Server serves an application to a Tendermint node.
type Server struct {
	svc       service.Service
	addr      string
	transport string
	logger    *logging.Logger
}

// NewServer creates a server listening on addr ("tcp://host:port" or
// "unix://path") with the given transport. The server is not started.
func NewServer(addr, transport string, app abi.Application, logger *logging.Logger) (*Server, error) {
	if app == nil {
		return nil, ErrNoApplication
	}
	if addr == "" {
		return nil, ErrNoAddress
	}
	if transport != TransportSocket && transport != TransportGRPC {
		return nil, fmt.Errorf("%w: %q", ErrTransport, transport)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	svc, err := abciserver.NewServer(addr, transport, NewApplication(app, logger))
	if err != nil {
		return nil, fmt.Errorf("creating ABCI server: %w", err)
	}
	svc.SetLogger(NewTMLogger(logger.WithComponent("abci-server")))

	return &Server{
		svc:       svc,
		addr:      addr,
		transport: transport,
		logger:    logger.WithComponent("abci"),
	}, nil
}

// Start begins listening for Tendermint connections.
func (s *Server) Start() error {
	if err := s.svc.Start(); err != nil {
		return fmt.Errorf("starting ABCI server: %w", err)
	}
	s.logger.Info("ABCI server listening", logging.Address(s.addr), "transport", s.transport)
	return nil
}

// Stop shuts the server down and removes its unix socket file, if any.
func (s *Server) Stop() error {
	if s.svc.IsRunning() {
		if err := s.svc.Stop(); err != nil {
			return fmt.Errorf("stopping ABCI server: %w", err)
		}
	}

	if path, ok := strings.CutPrefix(s.addr, "unix://"); ok {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing socket: %w", err)
		}
	}
	return nil
}

// IsRunning reports whether the server is running.
func (s *Server) IsRunning() bool {
	return s.svc.IsRunning()
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

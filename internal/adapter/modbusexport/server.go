package modbusexport

import (
	"fmt"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/config"
	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// ReadingSource provides the reading to export.
type ReadingSource interface {
	Get() (domain.Reading, bool)
}

// Handler serves the last reading as read-only input and holding registers.
// The unit id is ignored.
type Handler struct {
	source ReadingSource
	logger *zap.Logger
}

func NewHandler(source ReadingSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, logger: logger}
}

func (h *Handler) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *Handler) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *Handler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		h.logger.Debug("modbus export: write rejected", zap.String("client", req.ClientAddr), zap.Uint16("addr", req.Addr))
		return nil, modbus.ErrIllegalFunction
	}
	return h.read(req.Addr, req.Quantity)
}

func (h *Handler) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return h.read(req.Addr, req.Quantity)
}

func (h *Handler) read(addr, quantity uint16) ([]uint16, error) {
	end := uint32(addr) + uint32(quantity)
	if quantity == 0 || end > RegisterCount {
		return nil, modbus.ErrIllegalDataAddress
	}
	regs := Registers(h.source.Get())
	out := make([]uint16, quantity)
	copy(out, regs[addr:end])
	return out, nil
}

type Server struct {
	server *modbus.ModbusServer
	url    string
	logger *zap.Logger
}

func NewServer(cfg config.ModbusExportConfig, source ReadingSource, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "modbus_export"))
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        cfg.URL,
		Timeout:    30 * time.Second,
		MaxClients: cfg.MaxClients,
	}, NewHandler(source, logger))
	if err != nil {
		return nil, fmt.Errorf("modbus export: %w", err)
	}
	return &Server{server: server, url: cfg.URL, logger: logger}, nil
}

func (s *Server) Start() error {
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("modbus export start: %w", err)
	}
	s.logger.Info("modbus export listening", zap.String("url", s.url))
	return nil
}

func (s *Server) Stop() error {
	return s.server.Stop()
}

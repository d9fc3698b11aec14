package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"time"

	"glimpse/internal/archive"
	"glimpse/internal/capture"
	"glimpse/internal/daemon"
	"glimpse/internal/logging"
	"glimpse/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &service{daemon: d, logger: logger, ctx: ctx}); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *PauseResponse) error {
	s.daemon.Pause()
	resp.Enabled = s.daemon.Status(s.ctx).Capture.Enabled
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	s.daemon.Resume()
	resp.Enabled = s.daemon.Status(s.ctx).Capture.Enabled
	return nil
}

func (s *service) CaptureNow(_ CaptureNowRequest, resp *CaptureNowResponse) error {
	s.logger.Debug("ad-hoc capture requested")
	stored, err := s.daemon.CaptureNow(s.ctx)
	resp.Stored = stored
	if errors.Is(err, capture.ErrNoImage) {
		return err
	}
	if err != nil {
		resp.Message = err.Error()
	}
	return nil
}

func (s *service) ArchiveNow(_ ArchiveNowRequest, resp *ArchiveNowResponse) error {
	s.logger.Debug("archive pass requested")
	report, err := s.daemon.ArchiveNow(s.ctx)
	resp.Report = report
	if errors.Is(err, archive.ErrAlreadyRunning) {
		resp.AlreadyRunning = true
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("archive pass completed via IPC",
		logging.String(logging.FieldEventType, "archive_now"),
		logging.Int("archived", report.Archived),
		logging.Int("already_present", report.AlreadyPresent),
	)
	return nil
}

func (s *service) Entries(req EntriesRequest, resp *EntriesResponse) error {
	list, err := s.daemon.Entries(s.ctx, req.Filter())
	if err != nil {
		return err
	}
	resp.Entries = list
	return nil
}

func (s *service) Search(req SearchRequest, resp *EntriesResponse) error {
	list, err := s.daemon.Search(s.ctx, req.Text, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = list
	return nil
}

func (s *service) Entry(req EntryRequest, resp *EntryResponse) error {
	entry, err := s.daemon.Entry(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Entry = *entry
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"courier/internal/daemon"
	"courier/internal/logging"
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
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Courier", srv); err != nil {
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
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
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.Online = status.Online
	resp.Pending = status.Pending
	resp.Delivered = status.Delivered
	resp.Dropped = status.Dropped
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	if strings.TrimSpace(req.Target) == "" {
		return errors.New("enqueue requires a target")
	}
	item, err := s.daemon.Enqueue(s.ctx, daemon.EnqueueRequest{
		Method:      req.Method,
		Target:      req.Target,
		Payload:     req.Payload,
		Headers:     req.Headers,
		MaxAttempts: req.MaxAttempts,
	})
	if err != nil {
		return err
	}
	resp.Item = fromQueueItem(item)
	s.logger.Info("item enqueued via IPC",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("target", item.Target),
		logging.String(logging.FieldEventType, "ipc_enqueue"))
	return nil
}

func (s *service) Flush(_ FlushRequest, resp *FlushResponse) error {
	s.logger.Debug("flush requested via IPC")
	s.daemon.Flush(s.ctx)
	resp.Pending = s.daemon.Status().Pending
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	items := s.daemon.ListQueue()
	resp.Items = make([]QueueItem, 0, len(items))
	for _, item := range items {
		resp.Items = append(resp.Items, fromQueueItem(item))
	}
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	resp.Removed = s.daemon.ClearQueue(s.ctx)
	s.logger.Info("queue cleared via IPC",
		logging.String(logging.FieldEventType, "ipc_queue_clear"),
		logging.Int("removed_count", resp.Removed))
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("queue remove requires an id")
	}
	resp.Removed = s.daemon.RemoveItem(s.ctx, req.ID)
	return nil
}

func (s *service) EventsFetch(req EventsFetchRequest, resp *EventsFetchResponse) error {
	records := s.daemon.Events(req.SinceSeq)
	resp.Events = make([]EventRecord, 0, len(records))
	for _, record := range records {
		resp.Events = append(resp.Events, EventRecord{
			Seq:       record.Seq,
			Time:      record.Time,
			Kind:      record.Kind,
			ItemID:    record.ItemID,
			Target:    record.Target,
			Attempts:  record.Attempts,
			Error:     record.Error,
			Pending:   record.Pending,
			Succeeded: record.Succeeded,
			Dropped:   record.Dropped,
		})
	}
	return nil
}

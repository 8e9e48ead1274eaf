package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mschirtzinger/userlist/internal/listvm"
)

// DefaultPreviewRows is how many leading rows a sync_complete message carries.
const DefaultPreviewRows = 10

// Caller runs fn on the consumer goroutine and waits for it.
// eventloop.Loop implements Caller.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// Handler turns sync outcomes into dashboard messages and serves rows of the
// latest snapshot. It is a viewmodel.Observer; its callbacks and all reads
// of the snapshot run on the consumer goroutine.
type Handler struct {
	server  *Server
	loop    Caller
	logger  *slog.Logger
	preview int32

	// current is only touched on the consumer goroutine
	current *listvm.Cache
}

// NewHandler creates a new event handler connected to a dashboard server and
// registers it as the server's row source.
func NewHandler(server *Server, loop Caller, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default().With("component", "dashboard")
	}

	h := &Handler{
		server:  server,
		loop:    loop,
		logger:  logger,
		preview: DefaultPreviewRows,
	}
	server.SetRowSource(h)
	return h
}

// OnUpdate handles a newly published snapshot. The snapshot stays owned by
// whoever delivered it.
func (h *Handler) OnUpdate(snapshot *listvm.Cache) {
	h.current = snapshot

	total, err := snapshot.Count()
	if err != nil {
		h.logger.Warn("failed to count snapshot", "error", err)
		h.broadcast(MessageTypeSyncFailed, SyncFailedData{Error: err.Error()})
		return
	}

	data := SyncCompleteData{Rows: total}
	for i := int32(0); i < h.preview; i++ {
		row, ok, err := snapshot.Get(i)
		if err != nil {
			h.logger.Warn("failed to read preview row", "index", i, "error", err)
			break
		}
		if !ok {
			break
		}
		data.Preview = append(data.Preview, toRowData(row))
	}

	h.logger.Info("sync complete", "rows", total)
	h.broadcast(MessageTypeSyncComplete, data)
}

// OnFailure handles a failed sync cycle. The previous snapshot keeps being
// served.
func (h *Handler) OnFailure(err error) {
	h.logger.Warn("sync failed", "error", err)
	h.broadcast(MessageTypeSyncFailed, SyncFailedData{Error: err.Error()})
}

// Rows implements RowSource by reading the snapshot on the consumer goroutine.
func (h *Handler) Rows(ctx context.Context, start, n int32) (RowsResponse, error) {
	var (
		resp   RowsResponse
		rowErr error
	)

	err := h.loop.Call(ctx, func() {
		if h.current == nil {
			rowErr = ErrNoSnapshot
			return
		}

		total, err := h.current.Count()
		if err != nil {
			rowErr = err
			return
		}
		resp = RowsResponse{Total: total, Start: start, Rows: []RowData{}}

		for i := start; i < start+n; i++ {
			row, ok, err := h.current.Get(i)
			if err != nil {
				rowErr = err
				return
			}
			if !ok {
				break
			}
			resp.Rows = append(resp.Rows, toRowData(row))
		}
	})
	if err != nil {
		return RowsResponse{}, err
	}
	return resp, rowErr
}

func (h *Handler) broadcast(typ MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to marshal message data", "type", typ, "error", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	})
}

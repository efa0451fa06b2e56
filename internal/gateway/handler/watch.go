package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	batchsvc "annotify/internal/gateway/service/batch"

	"github.com/gorilla/websocket"
)

const (
	watchWSWriteWait = 10 * time.Second
	watchWSPongWait  = 60 * time.Second
	watchWSPingEvery = (watchWSPongWait * 9) / 10
)

var watchWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchWSInbound struct {
	Type  string `json:"type"`
	Reply string `json:"reply,omitempty"`
}

type watchWSOutbound struct {
	Type     string               `json:"type"`
	BatchID  string               `json:"batchId,omitempty"`
	Snapshot *batchsvc.BatchView  `json:"snapshot,omitempty"`
	Submit   *batchsvc.SubmitView `json:"submit,omitempty"`
	Code     string               `json:"code,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// HandleWatchWS streams batch snapshots and accepts replies over a websocket.
func (h *BatchHandler) HandleWatchWS(w http.ResponseWriter, r *http.Request) {
	batchID := strings.TrimSpace(r.URL.Query().Get("batch_id"))
	if batchID == "" {
		http.Error(w, "batch_id is required", http.StatusBadRequest)
		return
	}

	conn, err := watchWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(watchWSPongWait)); err != nil {
		log.Printf("watch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchWSPongWait))
	})

	writeCh := make(chan watchWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// Flush anything queued before the cancel so terminal
				// error frames still reach the client.
				for {
					select {
					case out := <-writeCh:
						if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
							return
						}
						if err := conn.WriteJSON(out); err != nil {
							return
						}
					default:
						return
					}
				}
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	subCh, subErr := h.svc.Subscribe(ctx, batchID)
	if subErr != nil {
		pushWatchWS(writeCh, watchWSOutbound{
			Type:    "error",
			Code:    "not_found",
			Message: subErr.Error(),
		})
		cancel()
		<-writerDone
		return
	}

	pushWatchWS(writeCh, watchWSOutbound{
		Type:    "subscribed",
		BatchID: batchID,
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-subCh:
				if !ok {
					return
				}
				switch evt.Kind {
				case batchsvc.SubscriptionEventSnapshot:
					pushWatchWS(writeCh, watchWSOutbound{
						Type:     "snapshot",
						BatchID:  batchID,
						Snapshot: evt.Snapshot,
					})
				case batchsvc.SubscriptionEventClosed:
					pushWatchWS(writeCh, watchWSOutbound{
						Type:    "closed",
						BatchID: batchID,
					})
				}
			}
		}
	}()

	for {
		var in watchWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWatchWS(writeCh, watchWSOutbound{Type: "pong"})
		case "submit":
			out, submitErr := h.svc.Submit(ctx, batchID, in.Reply)
			if submitErr != nil {
				pushWatchWS(writeCh, watchWSOutbound{
					Type:    "error",
					Code:    "submit_failed",
					Message: submitErr.Error(),
				})
				continue
			}
			pushWatchWS(writeCh, watchWSOutbound{
				Type:    "submit_ack",
				BatchID: batchID,
				Submit:  out,
			})
		default:
			pushWatchWS(writeCh, watchWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "type must be ping or submit",
			})
		}
	}
}

func pushWatchWS(ch chan watchWSOutbound, out watchWSOutbound) {
	select {
	case ch <- out:
	default:
	}
}

package stubserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pyramidclient/pkg/types"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	clientID := uuid.NewString()
	outbox := make(chan types.Frame, 8)

	defer func() {
		// Drop all registrations before closing the outbox, otherwise a
		// broadcast could race the close.
		done := make(chan struct{})
		s.rooms.Inbox() <- UnsubscribeAll{ClientID: clientID, Done: done}
		select {
		case <-done:
		case <-s.rooms.Done():
		}
		close(outbox)
	}()

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for frame := range outbox {
			payload, _ := json.Marshal(frame)
			ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
			_ = conn.Write(ctx, websocket.MessageText, payload)
			cancel()
		}
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}

		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("ws: bad json from client", zap.String("clientId", clientID))
			continue
		}

		switch frame.Type {
		case types.FrameSubscribe:
			if frame.Topic == "" {
				continue
			}
			s.rooms.Inbox() <- Subscribe{Topic: frame.Topic, ClientID: clientID, Outbox: outbox}

		case types.FramePublish:
			if frame.Body == nil {
				continue
			}
			// Outbound destinations map 1:1 onto inbound topics:
			// chat-send/{id} fans out on chat/{id}.
			gameID, ok := strings.CutPrefix(frame.Topic, "chat-send/")
			if !ok {
				continue
			}
			s.rooms.Inbox() <- Publish{Topic: types.ChatTopic(gameID), Body: *frame.Body}
		}
	}
}

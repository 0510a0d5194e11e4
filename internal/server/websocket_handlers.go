// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/notifications"
	"murmur/internal/observability"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.opentelemetry.io/otel/attribute"
)

// incomingEnvelope carries the type discriminator for client frames. The
// remaining fields are decoded per-type from the same bytes.
type incomingEnvelope struct {
	Type string `json:"type"`
}

type sendMessagePayload struct {
	ReceiverID uint `json:"receiver_id" validate:"required"`
	// Content length is enforced by the send gate, not here. Empty text is a
	// valid message.
	Content   string `json:"content"`
	ImagePath string `json:"image_path"`
}

type markReadPayload struct {
	MessageID uint `json:"message_id" validate:"required"`
}

// WebsocketHandler handles the live messaging channel. Every frame is
// authenticated by the upgrade middleware; admission is re-checked per send,
// never cached on the connection.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			s.wsLog.Rejected(0, "unauthenticated")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			s.wsLog.Failure(userID, "user_lookup", err)
			_ = conn.Close()
			return
		}
		username := user.Username

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			s.wsLog.Rejected(userID, err.Error())
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		observability.WebSocketConnectionsTotal.Inc()
		s.wsLog.Connected(userID, username)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var envelope incomingEnvelope
			if err := json.Unmarshal(message, &envelope); err != nil {
				s.wsLog.Failure(userID, "decode", err)
				s.sendClientError(c, "Invalid message format")
				return
			}
			s.wsLog.Frame(userID, envelope.Type)

			switch envelope.Type {
			case "send_message":
				s.handleSendMessage(ctx, c, userID, message)
			case "mark_read":
				s.handleMarkRead(ctx, c, userID, message)
			default:
				s.sendClientError(c, fmt.Sprintf("Unknown message type: %s", envelope.Type))
			}
		}

		// Welcome frame confirms the registered identity.
		welcome, _ := json.Marshal(map[string]interface{}{
			"type": "connected",
			"payload": map[string]interface{}{
				"user_id":  userID,
				"username": username,
			},
		})
		client.TrySend(welcome)

		// Write pump in a goroutine; read pump blocks until disconnect.
		go client.WritePump()
		client.ReadPump()
		s.wsLog.Disconnected(userID)
	})
}

// handleSendMessage runs the full delivery sequence: authorize, persist,
// push to the receiver, then acknowledge the caller. The receiver push never
// precedes the durable write, so a delivered message is always queryable.
func (s *Server) handleSendMessage(ctx context.Context, c *notifications.Client, userID uint, raw []byte) {
	var req sendMessagePayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendClientError(c, "Invalid message format")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		observability.MessagesTotal.WithLabelValues("rejected").Inc()
		s.sendClientError(c, "receiver_id is required")
		return
	}

	span, ctx := observability.NewSpan(ctx, "ws.send_message")
	defer span.End()
	span.AddAttributes(
		attribute.Int64("sender.id", int64(userID)),
		attribute.Int64("receiver.id", int64(req.ReceiverID)),
	)

	// Same budget as a REST chat endpoint would get. The limiter fails open:
	// a broken store must not take the delivery pipeline down with it.
	id := fmt.Sprintf("user:%d", userID)
	allowed, err := middleware.CheckRateLimit(ctx, s.redis, "send_message", id, 30, time.Minute)
	if err != nil {
		s.wsLog.Failure(userID, "rate_limit", err)
		allowed = true
	}
	if !allowed {
		observability.MessagesTotal.WithLabelValues("rejected").Inc()
		s.sendClientError(c, "Rate limit exceeded. Please wait a moment.")
		return
	}

	msg, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		ImagePath:  req.ImagePath,
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			observability.MessagesTotal.WithLabelValues("rejected").Inc()
			s.sendClientError(c, appErr.Message)
			return
		}
		span.SetError(err)
		observability.MessagesTotal.WithLabelValues("failed").Inc()
		s.wsLog.Failure(userID, "send_message", err)
		s.sendClientError(c, "Failed to send message")
		return
	}
	observability.MessagesTotal.WithLabelValues("sent").Inc()

	payload := messagePayload(msg)

	fate := "offline"
	if s.hub.IsOnline(req.ReceiverID) {
		fate = "pushed"
	}
	s.publishUserEvent(req.ReceiverID, EventReceiveMessage, payload)
	observability.MessageDeliveries.WithLabelValues(EventReceiveMessage, fate).Inc()

	// Ack the caller on this connection only (their other devices get the
	// persisted row from history).
	ack, _ := json.Marshal(map[string]interface{}{
		"type":    EventMessageSent,
		"payload": payload,
	})
	c.TrySend(ack)
}

// handleMarkRead flags a message as read and announces the receipt. The
// receipt goes out as a broadcast so any connection showing the conversation
// can update its read markers.
func (s *Server) handleMarkRead(ctx context.Context, c *notifications.Client, userID uint, raw []byte) {
	var req markReadPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendClientError(c, "Invalid message format")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.sendClientError(c, "message_id is required")
		return
	}

	msg, err := s.chatService.MarkMessageRead(ctx, req.MessageID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			s.sendClientError(c, appErr.Message)
			return
		}
		s.wsLog.Failure(userID, "mark_read", err)
		s.sendClientError(c, "Failed to mark message as read")
		return
	}

	s.publishBroadcastEvent(EventMessageRead, map[string]interface{}{
		"message_id": msg.ID,
		"reader_id":  userID,
		"read_at":    msg.ReadAt,
	})
}

func (s *Server) sendClientError(c *notifications.Client, message string) {
	frame, err := json.Marshal(map[string]interface{}{
		"type":    EventError,
		"payload": map[string]string{"message": message},
	})
	if err != nil {
		return
	}
	c.TrySend(frame)
}

package server

import (
	"context"
	"encoding/json"
	"log"

	"murmur/internal/models"
)

// Event type constants prevent typos in event names.
const (
	EventReceiveMessage  = "receive_message"
	EventMessageSent     = "message_sent"
	EventMessageRead     = "message_read"
	EventFriendAdded     = "friend_added"
	EventUserStatus      = "user_status"
	EventError           = "error"
	EventMessagesDropped = "messages_dropped"
)

// publishUserEvent delivers an event to every live connection of userID.
// When Redis is wired the event goes through pub/sub so every process
// (including this one, via the hub's subscriber) fans it out; otherwise it
// goes straight to the local hub. Publishing both ways would deliver the
// event twice to local connections.
func (s *Server) publishUserEvent(userID uint, eventType string, payload map[string]interface{}) {
	message, ok := marshalEvent(eventType, payload)
	if !ok {
		return
	}
	if s.notifier != nil {
		if err := s.notifier.PublishUser(context.Background(), userID, message); err != nil {
			log.Printf("failed to publish %s event to user %d: %v", eventType, userID, err)
		}
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(userID, message)
	}
}

func (s *Server) publishBroadcastEvent(eventType string, payload map[string]interface{}) {
	message, ok := marshalEvent(eventType, payload)
	if !ok {
		return
	}
	if s.notifier != nil {
		if err := s.notifier.PublishBroadcast(context.Background(), message); err != nil {
			log.Printf("failed to publish %s broadcast event: %v", eventType, err)
		}
		return
	}
	if s.hub != nil {
		s.hub.BroadcastAll(message)
	}
}

func marshalEvent(eventType string, payload map[string]interface{}) (string, bool) {
	event := map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return "", false
	}
	return string(eventJSON), true
}

// onUserOnline pushes a user_status event to each of the user's friends.
func (s *Server) onUserOnline(userID uint) {
	s.pushStatusToFriends(userID, "online")
}

func (s *Server) onUserOffline(userID uint) {
	s.pushStatusToFriends(userID, "offline")
}

func (s *Server) pushStatusToFriends(userID uint, status string) {
	ctx := context.Background()
	friendIDs, err := s.friendRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		log.Printf("failed to load friends for presence push (user %d): %v", userID, err)
		return
	}
	for _, friendID := range friendIDs {
		s.publishUserEvent(friendID, EventUserStatus, map[string]interface{}{
			"user_id": userID,
			"status":  status,
		})
	}
}

func userSummary(user models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"avatar":   user.Avatar,
	}
}

func messagePayload(msg *models.Message) map[string]interface{} {
	payload := map[string]interface{}{
		"id":          msg.ID,
		"sender_id":   msg.SenderID,
		"receiver_id": msg.ReceiverID,
		"content":     msg.Content,
		"is_read":     msg.IsRead,
		"created_at":  msg.CreatedAt,
	}
	if msg.ImagePath != "" {
		payload["image_path"] = msg.ImagePath
	}
	if msg.ReadAt != nil {
		payload["read_at"] = msg.ReadAt
	}
	return payload
}

package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newChatApp(s *Server, callerID uint) *fiber.App {
	app := newAuthedApp(callerID)
	app.Get("/api/messages/:userId", s.GetMessages)
	app.Get("/api/messages/:userId/unread", s.GetUnreadCount)
	return app
}

func befriend(t *testing.T, db *gorm.DB, a, b uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Friendship{UserID: a, FriendID: b}).Error)
}

func storeMessage(t *testing.T, db *gorm.DB, sender, receiver uint, content string, at time.Time) *models.Message {
	t.Helper()
	msg := &models.Message{SenderID: sender, ReceiverID: receiver, Content: content, CreatedAt: at}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestGetMessages(t *testing.T) {
	s, db := newHandlerTestServer(t)
	alice := createHandlerTestUser(t, db, "hist_alice")
	bob := createHandlerTestUser(t, db, "hist_bob")
	carol := createHandlerTestUser(t, db, "hist_carol")
	befriend(t, db, alice.ID, bob.ID)

	base := time.Now().Add(-time.Hour)
	storeMessage(t, db, alice.ID, bob.ID, "first", base)
	storeMessage(t, db, bob.ID, alice.ID, "second", base.Add(time.Minute))
	storeMessage(t, db, alice.ID, bob.ID, "third", base.Add(2*time.Minute))
	storeMessage(t, db, alice.ID, carol.ID, "elsewhere", base)

	app := newChatApp(s, alice.ID)

	t.Run("returns the conversation oldest first", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/messages/%d", bob.ID), nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		messages, ok := body["messages"].([]interface{})
		require.True(t, ok)
		require.Len(t, messages, 3)

		contents := make([]string, 0, len(messages))
		for _, m := range messages {
			contents = append(contents, m.(map[string]interface{})["content"].(string))
		}
		assert.Equal(t, []string{"first", "second", "third"}, contents)
	})

	t.Run("empty conversation", func(t *testing.T) {
		app := newChatApp(s, carol.ID)
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/messages/%d", bob.ID), nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		messages, ok := body["messages"].([]interface{})
		require.True(t, ok)
		assert.Empty(t, messages)
	})

	t.Run("malformed peer id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/messages/abc", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid user ID", decodeBody(t, resp)["error"])
	})
}

func TestGetUnreadCount(t *testing.T) {
	s, db := newHandlerTestServer(t)
	alice := createHandlerTestUser(t, db, "unread_alice")
	bob := createHandlerTestUser(t, db, "unread_bob")
	befriend(t, db, alice.ID, bob.ID)

	now := time.Now()
	storeMessage(t, db, bob.ID, alice.ID, "one", now.Add(-3*time.Minute))
	storeMessage(t, db, bob.ID, alice.ID, "two", now.Add(-2*time.Minute))
	read := storeMessage(t, db, bob.ID, alice.ID, "seen", now.Add(-time.Minute))
	require.NoError(t, db.Model(read).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error)
	storeMessage(t, db, alice.ID, bob.ID, "outbound", now)

	app := newChatApp(s, alice.ID)
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/messages/%d/unread", bob.ID), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["unread"], "only unread inbound messages count")
}

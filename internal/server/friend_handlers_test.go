package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFriendApp(s *Server, callerID uint) *fiber.App {
	app := newAuthedApp(callerID)
	app.Post("/api/friends/:userId", s.AddFriend)
	app.Get("/api/friends", s.GetFriends)
	return app
}

func TestAddFriend(t *testing.T) {
	s, db := newHandlerTestServer(t)
	alice := createHandlerTestUser(t, db, "friend_alice")
	bob := createHandlerTestUser(t, db, "friend_bob")

	app := newFriendApp(s, alice.ID)

	add := func(targetID string) (int, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodPost, "/api/friends/"+targetID, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode, decodeBody(t, resp)
	}

	t.Run("creates the friendship", func(t *testing.T) {
		status, body := add(strconv.FormatUint(uint64(bob.ID), 10))
		assert.Equal(t, fiber.StatusCreated, status)
		assert.NotNil(t, body["id"])
	})

	t.Run("duplicate pair conflicts", func(t *testing.T) {
		status, body := add(strconv.FormatUint(uint64(bob.ID), 10))
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, "CONFLICT", body["code"])
	})

	t.Run("cannot befriend self", func(t *testing.T) {
		status, body := add(strconv.FormatUint(uint64(alice.ID), 10))
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, "You cannot add yourself as a friend", body["error"])
	})

	t.Run("unknown peer", func(t *testing.T) {
		status, body := add("99999")
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", body["code"])
	})

	t.Run("malformed id", func(t *testing.T) {
		status, body := add("not-a-number")
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "Invalid user ID", body["error"])
	})
}

func TestGetFriends(t *testing.T) {
	s, db := newHandlerTestServer(t)
	alice := createHandlerTestUser(t, db, "list_alice")
	bob := createHandlerTestUser(t, db, "list_bob")
	carol := createHandlerTestUser(t, db, "list_carol")
	createHandlerTestUser(t, db, "list_stranger")

	app := newFriendApp(s, alice.ID)
	for _, id := range []uint{bob.ID, carol.ID} {
		req := httptest.NewRequest(http.MethodPost, "/api/friends/"+strconv.FormatUint(uint64(id), 10), nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	friends, ok := body["friends"].([]interface{})
	require.True(t, ok)
	require.Len(t, friends, 2)

	usernames := make([]string, 0, len(friends))
	for _, f := range friends {
		entry := f.(map[string]interface{})
		usernames = append(usernames, entry["username"].(string))
		assert.Nil(t, entry["email"], "friend listing exposes public fields only")
	}
	assert.ElementsMatch(t, []string{"list_bob", "list_carol"}, usernames)
}

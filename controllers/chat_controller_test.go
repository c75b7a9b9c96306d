package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/chat-server/config"
	"github.com/vnkhanh/chat-server/controllers"
	"github.com/vnkhanh/chat-server/directory"
	"github.com/vnkhanh/chat-server/models"
	"github.com/vnkhanh/chat-server/routes"
	"github.com/vnkhanh/chat-server/services"
	"github.com/vnkhanh/chat-server/transport"
	"github.com/vnkhanh/chat-server/utils"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	config.DB = db

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := transport.NewHub(log)
	go hub.Run()

	svc := services.NewChatService(db, directory.NewGormDirectory(db), hub, log)
	controllers.SetChatService(svc)
	controllers.SetHub(hub)

	r := gin.New()
	routes.SetupRoutes(r)
	return r
}

func seedMember(t *testing.T, name string) models.Member {
	t.Helper()
	m := models.Member{Name: name, Email: name + "@example.com"}
	require.NoError(t, config.DB.Create(&m).Error)
	return m
}

func tokenFor(t *testing.T, m models.Member) string {
	t.Helper()
	token, err := utils.GenerateToken(strconv.FormatUint(uint64(m.ID), 10))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func Test_API_RequiresToken(t *testing.T) {
	req := require.New(t)
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/rooms?member_id=1", "", nil)
	req.Equal(http.StatusUnauthorized, w.Code)
}

func Test_API_RoomLifecycle(t *testing.T) {
	req := require.New(t)
	r := setupRouter(t)

	alice := seedMember(t, "alice")
	bob := seedMember(t, "bob")
	aliceToken := tokenFor(t, alice)

	// Create a room with both of them.
	w := doJSON(t, r, http.MethodPost, "/api/rooms", aliceToken, gin.H{
		"name":            "homework",
		"participant_ids": []uint{bob.ID},
	})
	req.Equal(http.StatusCreated, w.Code)

	var created struct {
		Data models.Room `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &created))
	roomID := created.Data.ID
	req.NotEmpty(roomID)
	req.Equal(2, created.Data.MemberCount)

	// Alice sends, bob reads.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/messages", aliceToken, gin.H{
		"sender_id": alice.ID,
		"content":   "hi",
	})
	req.Equal(http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/rooms/%s/messages?member_id=%d", roomID, bob.ID), aliceToken, nil)
	req.Equal(http.StatusOK, w.Code)
	var listed struct {
		Data []services.MessagePayload `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &listed))
	req.Len(listed.Data, 1)
	req.Equal("hi", listed.Data[0].Content)
	req.Equal("alice", listed.Data[0].Sender.Name)

	// Bob's room list carries the preview.
	w = doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/rooms?member_id=%d", bob.ID), aliceToken, nil)
	req.Equal(http.StatusOK, w.Code)
	var rooms struct {
		Data []services.RoomSummary `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &rooms))
	req.Len(rooms.Data, 1)
	req.NotNil(rooms.Data[0].LastMessage)

	// Both leave; the room evaporates with the second leave.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/leave", aliceToken, gin.H{
		"member_id": bob.ID,
	})
	req.Equal(http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID, aliceToken, nil)
	req.Equal(http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/leave", aliceToken, gin.H{
		"member_id": alice.ID,
	})
	req.Equal(http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID, aliceToken, nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func Test_API_ErrorMapping(t *testing.T) {
	req := require.New(t)
	r := setupRouter(t)

	alice := seedMember(t, "alice")
	bob := seedMember(t, "bob")
	clara := seedMember(t, "clara")
	token := tokenFor(t, alice)

	w := doJSON(t, r, http.MethodPost, "/api/rooms", token, gin.H{
		"name":            "r",
		"participant_ids": []uint{bob.ID},
	})
	req.Equal(http.StatusCreated, w.Code)
	var created struct {
		Data models.Room `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &created))
	roomID := created.Data.ID

	// Unknown room -> 404.
	w = doJSON(t, r, http.MethodGet, "/api/rooms/nope", token, nil)
	req.Equal(http.StatusNotFound, w.Code)

	// Outsider sending -> 403.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/messages", token, gin.H{
		"sender_id": clara.ID,
		"content":   "knock knock",
	})
	req.Equal(http.StatusForbidden, w.Code)

	// Outsider adding someone -> 403.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/members", token, gin.H{
		"member_id":    clara.ID,
		"requester_id": clara.ID,
	})
	req.Equal(http.StatusForbidden, w.Code)

	// Double add -> 409 on the second call.
	add := gin.H{"member_id": clara.ID, "requester_id": alice.ID}
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/members", token, add)
	req.Equal(http.StatusCreated, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/members", token, add)
	req.Equal(http.StatusConflict, w.Code)

	// Unknown participant on create -> 404.
	w = doJSON(t, r, http.MethodPost, "/api/rooms", token, gin.H{
		"name":            "ghosts",
		"participant_ids": []uint{9999},
	})
	req.Equal(http.StatusNotFound, w.Code)

	// Missing body fields -> 400.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/messages", token, gin.H{
		"sender_id": alice.ID,
	})
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_API_MemberSearch(t *testing.T) {
	req := require.New(t)
	r := setupRouter(t)

	alice := seedMember(t, "alice")
	seedMember(t, "alina")
	seedMember(t, "bob")
	token := tokenFor(t, alice)

	w := doJSON(t, r, http.MethodGet, "/api/members/search?q=ali", token, nil)
	req.Equal(http.StatusOK, w.Code)
	var found struct {
		Data []models.Member `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &found))
	req.Len(found.Data, 2)

	w = doJSON(t, r, http.MethodGet, "/api/members/search", token, nil)
	req.Equal(http.StatusBadRequest, w.Code)
}

package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/chat-server/middleware"
	"github.com/vnkhanh/chat-server/models"
	"github.com/vnkhanh/chat-server/services"
)

// chatService is injected once at startup; the package-level var keeps the
// handlers as plain functions.
var chatService *services.ChatService

// SetChatService wires the service the handlers delegate to.
func SetChatService(svc *services.ChatService) {
	chatService = svc
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.Is(err, services.ErrNotMember),
		errors.Is(err, services.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
	case errors.Is(err, services.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	default:
		log.Printf("chat operation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

func memberIDQuery(c *gin.Context) (uint, bool) {
	raw := c.Query("member_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "member_id is required"})
		return 0, false
	}
	return uint(id), true
}

// CH-01: rooms of a member, with last message preview and unread count.
func ListRooms(c *gin.Context) {
	memberID, ok := memberIDQuery(c)
	if !ok {
		return
	}

	summaries, err := chatService.ListRooms(memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// CH-02: create a room; the authenticated member is the creator and is
// always part of the participant set.
func CreateRoom(c *gin.Context) {
	creator := c.MustGet(middleware.CtxMember).(models.Member)

	var req struct {
		Name           string `json:"name" binding:"required,min=1,max=100"`
		ParticipantIDs []uint `json:"participant_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	room, err := chatService.CreateRoom(req.Name, req.ParticipantIDs, creator.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Room created",
		"data":    room,
	})
}

// CH-03: room detail.
func GetRoomDetail(c *gin.Context) {
	room, err := chatService.GetRoom(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": room})
}

// CH-04: ordered message list since the requester joined.
func ListRoomMessages(c *gin.Context) {
	memberID, ok := memberIDQuery(c)
	if !ok {
		return
	}

	messages, err := chatService.ListMessages(c.Param("id"), memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

// CH-05: send a message into a room.
func SendMessage(c *gin.Context) {
	var req struct {
		SenderID uint   `json:"sender_id" binding:"required"`
		Content  string `json:"content" binding:"required,min=1,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	msg, err := chatService.SendMessage(c.Param("id"), req.SenderID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent",
		"data":    msg,
	})
}

// CH-06: leave a room; when the last member leaves, the room and its
// messages are gone for good.
func LeaveRoom(c *gin.Context) {
	var req struct {
		MemberID uint `json:"member_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	roomID := c.Param("id")
	leftAt, err := chatService.LeaveRoom(roomID, req.MemberID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"room_id": roomID,
			"left_at": leftAt,
		},
	})
}

// CH-07: add a member on behalf of an existing one.
func AddRoomMember(c *gin.Context) {
	var req struct {
		MemberID    uint `json:"member_id" binding:"required"`
		RequesterID uint `json:"requester_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	membership, err := chatService.AddMember(c.Param("id"), req.MemberID, req.RequesterID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Member added",
		"data":    membership,
	})
}

// CH-08: candidate members for the room-creation UI.
func SearchMembers(c *gin.Context) {
	keyword := c.Query("q")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "q is required"})
		return
	}

	members, err := chatService.SearchMembers(keyword)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

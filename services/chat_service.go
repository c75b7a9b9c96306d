package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/chat-server/directory"
	"github.com/vnkhanh/chat-server/models"
	"github.com/vnkhanh/chat-server/transport"
)

// SenderSummary is the slice of a member that rides along with a message.
type SenderSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// MessagePayload is the created/listed message shape returned to callers and
// pushed over the transport.
type MessagePayload struct {
	ID        uint          `json:"id"`
	RoomID    string        `json:"room_id"`
	Content   string        `json:"content"`
	Sender    SenderSummary `json:"sender"`
	CreatedAt time.Time     `json:"created_at"`
}

// RoomSummary is one entry of a member's room list.
type RoomSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	MemberCount int             `json:"member_count"`
	CreatedAt   time.Time       `json:"created_at"`
	LastMessage *MessagePayload `json:"last_message,omitempty"`
	UnreadCount int64           `json:"unread_count"`
}

// ChatService holds the chat-core logic: room lifecycle, membership,
// message send/read and unread accounting. Every mutating operation runs as
// one transaction; the transport push happens after commit and is
// fire-and-forget.
type ChatService struct {
	db  *gorm.DB
	dir directory.MemberDirectory
	pub transport.Publisher
	log *slog.Logger
}

func NewChatService(db *gorm.DB, dir directory.MemberDirectory, pub transport.Publisher, log *slog.Logger) *ChatService {
	if pub == nil {
		pub = transport.NoopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{db: db, dir: dir, pub: pub, log: log}
}

// runTx executes fn in a transaction. Domain errors abort immediately;
// a transactional failure (constraint violation, deadlock) is retried once
// with a fresh transaction before being surfaced.
func (s *ChatService) runTx(fn func(tx *gorm.DB) error) error {
	err := s.db.Transaction(fn)
	if err == nil || isDomainError(err) {
		return err
	}
	s.log.Warn("chat transaction failed, retrying once", "error", err)
	return s.db.Transaction(fn)
}

// lockRoom loads the room row FOR UPDATE inside tx. Every transaction that
// appends a message or changes membership takes this lock first, so a send
// cannot interleave with a last-member leave deleting the room out from
// under it. sqlite has no row locks; its single-writer lock serializes
// transactions instead.
func lockRoom(tx *gorm.DB, roomID string) error {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var room models.Room
	if err := q.First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	return nil
}

func (s *ChatService) resolveMember(id uint) (models.Member, error) {
	m, err := s.dir.ResolveByID(id)
	if err != nil {
		if errors.Is(err, directory.ErrMemberNotFound) {
			return models.Member{}, fmt.Errorf("%w: id %d", ErrMemberNotFound, id)
		}
		return models.Member{}, err
	}
	return m, nil
}

// CreateRoom creates a room together with one active membership per
// participant, atomically. The creator is always a participant; duplicate
// ids collapse to one membership.
func (s *ChatService) CreateRoom(name string, participantIDs []uint, creatorID uint) (models.Room, error) {
	ids := lo.Uniq(append([]uint{creatorID}, participantIDs...))
	for _, id := range ids {
		if _, err := s.resolveMember(id); err != nil {
			return models.Room{}, err
		}
	}

	now := time.Now()
	room := models.Room{
		ID:          uuid.NewString(),
		Name:        name,
		MemberCount: len(ids),
		CreatedAt:   now,
	}

	err := s.runTx(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		for _, id := range ids {
			m := models.Membership{
				RoomID:   room.ID,
				MemberID: id,
				Status:   models.MembershipActive,
				JoinedAt: now,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoom fetches a single room by id.
func (s *ChatService) GetRoom(roomID string) (models.Room, error) {
	var room models.Room
	if err := s.db.First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Room{}, ErrRoomNotFound
		}
		return models.Room{}, err
	}
	return room, nil
}

// AddMember adds memberID to the room on behalf of requesterID. A departed
// membership row is reactivated with its original join time; the member
// counter moves in the same transaction.
func (s *ChatService) AddMember(roomID string, memberID, requesterID uint) (models.Membership, error) {
	if _, err := s.resolveMember(memberID); err != nil {
		return models.Membership{}, err
	}

	var membership models.Membership
	err := s.runTx(func(tx *gorm.DB) error {
		if err := lockRoom(tx, roomID); err != nil {
			return err
		}

		var requester models.Membership
		err := tx.Where("room_id = ? AND member_id = ? AND status = ?",
			roomID, requesterID, models.MembershipActive).First(&requester).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAuthorized
		} else if err != nil {
			return err
		}

		var existing models.Membership
		err = tx.Where("room_id = ? AND member_id = ?", roomID, memberID).First(&existing).Error
		switch {
		case err == nil && existing.Status == models.MembershipActive:
			return ErrAlreadyMember
		case err == nil:
			// Departed row: reactivate, keep the original join time.
			existing.Status = models.MembershipActive
			existing.LeftAt = nil
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			membership = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			membership = models.Membership{
				RoomID:   roomID,
				MemberID: memberID,
				Status:   models.MembershipActive,
				JoinedAt: time.Now(),
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Model(&models.Room{}).Where("id = ?", roomID).
			UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error
	})
	if err != nil {
		return models.Membership{}, err
	}
	return membership, nil
}

// LeaveRoom archives the member's membership and decrements the counter in
// one transaction. The delete-room decision is made on the post-decrement
// value read inside that same transaction, so two concurrent leavers cannot
// both see a populated room.
func (s *ChatService) LeaveRoom(roomID string, memberID uint) (time.Time, error) {
	var leftAt time.Time
	err := s.runTx(func(tx *gorm.DB) error {
		if err := lockRoom(tx, roomID); err != nil {
			return err
		}

		var membership models.Membership
		err := tx.Where("room_id = ? AND member_id = ? AND status = ?",
			roomID, memberID, models.MembershipActive).First(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		} else if err != nil {
			return err
		}

		leftAt = time.Now()
		membership.Status = models.MembershipDeparted
		membership.LeftAt = &leftAt
		if err := tx.Save(&membership).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			UpdateColumn("member_count", gorm.Expr("member_count - 1")).Error; err != nil {
			return err
		}

		var room models.Room
		if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
			return err
		}
		if room.MemberCount <= 0 {
			// Last one out: the room, its messages and every membership row
			// (archived ones included) go away for good.
			if err := tx.Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", roomID).Delete(&models.Membership{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Room{}, "id = ?", roomID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return leftAt, nil
}

// SendMessage appends a message and, once the transaction has committed,
// hands it to the transport. Delivery is best-effort: a failed or dropped
// push never affects the persisted message.
func (s *ChatService) SendMessage(roomID string, senderID uint, content string) (MessagePayload, error) {
	sender, err := s.resolveMember(senderID)
	if err != nil {
		return MessagePayload{}, err
	}

	var msg models.Message
	err = s.runTx(func(tx *gorm.DB) error {
		if err := lockRoom(tx, roomID); err != nil {
			return err
		}

		var membership models.Membership
		err := tx.Where("room_id = ? AND member_id = ? AND status = ?",
			roomID, senderID, models.MembershipActive).First(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		} else if err != nil {
			return err
		}

		msg = models.Message{
			RoomID:    roomID,
			SenderID:  senderID,
			Content:   content,
			CreatedAt: time.Now(),
		}
		return tx.Create(&msg).Error
	})
	if err != nil {
		return MessagePayload{}, err
	}

	payload := MessagePayload{
		ID:        msg.ID,
		RoomID:    roomID,
		Content:   msg.Content,
		Sender:    SenderSummary{ID: sender.ID, Name: sender.Name},
		CreatedAt: msg.CreatedAt,
	}
	s.pub.Publish(roomID, transport.Event{Type: transport.EventMessage, Payload: payload})
	return payload, nil
}

// ListMessages returns the room's messages visible to the requester, oldest
// first, and advances the requester's read cursor. Visibility starts at the
// membership's join time, which survives leave/rejoin, so a re-added member
// sees everything since their first join.
func (s *ChatService) ListMessages(roomID string, requesterID uint) ([]MessagePayload, error) {
	if _, err := s.GetRoom(roomID); err != nil {
		return nil, err
	}

	var membership models.Membership
	err := s.db.Where("room_id = ? AND member_id = ? AND status = ?",
		roomID, requesterID, models.MembershipActive).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotMember
	} else if err != nil {
		return nil, err
	}

	// The cursor is stamped before the query: a message that lands between
	// the fetch and the cursor write stays unread instead of vanishing.
	now := time.Now()

	var messages []models.Message
	if err := s.db.Preload("Sender").
		Where("room_id = ? AND created_at >= ?", roomID, membership.JoinedAt).
		Order("created_at asc, id asc").
		Find(&messages).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.Membership{}).Where("id = ?", membership.ID).
		UpdateColumn("last_seen_at", now).Error; err != nil {
		return nil, err
	}

	out := make([]MessagePayload, 0, len(messages))
	for _, m := range messages {
		p := MessagePayload{
			ID:        m.ID,
			RoomID:    m.RoomID,
			Content:   m.Content,
			Sender:    SenderSummary{ID: m.SenderID},
			CreatedAt: m.CreatedAt,
		}
		if m.Sender != nil {
			p.Sender.Name = m.Sender.Name
		}
		out = append(out, p)
	}
	return out, nil
}

// ListRooms returns every room the member is active in, with a last-message
// preview and the unread count for that member.
func (s *ChatService) ListRooms(memberID uint) ([]RoomSummary, error) {
	var memberships []models.Membership
	if err := s.db.Where("member_id = ? AND status = ?",
		memberID, models.MembershipActive).Find(&memberships).Error; err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(memberships))
	for _, membership := range memberships {
		var room models.Room
		if err := s.db.First(&room, "id = ?", membership.RoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}

		summary := RoomSummary{
			ID:          room.ID,
			Name:        room.Name,
			MemberCount: room.MemberCount,
			CreatedAt:   room.CreatedAt,
		}

		var last models.Message
		err := s.db.Preload("Sender").
			Where("room_id = ?", room.ID).
			Order("created_at desc, id desc").
			First(&last).Error
		if err == nil {
			preview := MessagePayload{
				ID:        last.ID,
				RoomID:    last.RoomID,
				Content:   last.Content,
				Sender:    SenderSummary{ID: last.SenderID},
				CreatedAt: last.CreatedAt,
			}
			if last.Sender != nil {
				preview.Sender.Name = last.Sender.Name
			}
			summary.LastMessage = &preview
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		unread, err := s.unreadCount(membership)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// unreadCount counts messages after the member's read cursor, excluding the
// member's own. A membership that has never listed messages falls back to
// its join time.
func (s *ChatService) unreadCount(membership models.Membership) (int64, error) {
	cursor := membership.JoinedAt
	if membership.LastSeenAt != nil {
		cursor = *membership.LastSeenAt
	}

	var n int64
	err := s.db.Model(&models.Message{}).
		Where("room_id = ? AND created_at > ? AND sender_id != ?",
			membership.RoomID, cursor, membership.MemberID).
		Count(&n).Error
	return n, err
}

// IsActiveMember reports whether the member currently belongs to the room.
// The websocket layer uses it to authorize room subscriptions.
func (s *ChatService) IsActiveMember(memberID uint, roomID string) bool {
	var n int64
	s.db.Model(&models.Membership{}).
		Where("room_id = ? AND member_id = ? AND status = ?",
			roomID, memberID, models.MembershipActive).
		Count(&n)
	return n > 0
}

// SearchMembers finds room-creation candidates by display-name substring.
func (s *ChatService) SearchMembers(keyword string) ([]models.Member, error) {
	return s.dir.SearchByName(keyword)
}

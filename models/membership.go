package models

import "time"

const (
	MembershipActive   = "active"
	MembershipDeparted = "departed"
)

// Membership binds a member to a room. Leaving archives the row (status
// "departed") instead of deleting it, so joined_at survives a rejoin and
// left_at stays readable.
type Membership struct {
	ID         uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoomID     string     `gorm:"column:room_id;size:36;not null;uniqueIndex:idx_room_member" json:"room_id"`
	MemberID   uint       `gorm:"column:member_id;not null;uniqueIndex:idx_room_member" json:"member_id"`
	Status     string     `gorm:"column:status;size:20;not null;default:'active'" json:"status"`
	JoinedAt   time.Time  `gorm:"column:joined_at;not null" json:"joined_at"`
	LeftAt     *time.Time `gorm:"column:left_at" json:"left_at"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at" json:"last_seen_at"`
}

func (Membership) TableName() string {
	return "chat_memberships"
}

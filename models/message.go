package models

import "time"

// Message is append-only; ordering is by created_at with the auto-increment
// id breaking ties between same-timestamp sends.
type Message struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"column:room_id;size:36;not null;index" json:"room_id"`
	SenderID  uint      `gorm:"column:sender_id;not null" json:"sender_id"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`

	Sender *Member `gorm:"foreignKey:SenderID;references:ID" json:"-"`
}

func (Message) TableName() string {
	return "chat_messages"
}

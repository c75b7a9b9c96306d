package models

import "time"

type Room struct {
	ID          string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name        string    `gorm:"column:name;size:100;not null" json:"name"`
	MemberCount int       `gorm:"column:member_count;not null;default:0" json:"member_count"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Memberships []Membership `gorm:"foreignKey:RoomID" json:"-"`
	Messages    []Message    `gorm:"foreignKey:RoomID" json:"-"`
}

func (Room) TableName() string {
	return "chat_rooms"
}

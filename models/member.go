package models

import "time"

// Member mirrors the platform's user table; the chat service only reads it
// through the directory package.
type Member struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;size:100;not null" json:"name"`
	Email     string    `gorm:"column:email;size:100;unique;not null" json:"email"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Member) TableName() string {
	return "members"
}

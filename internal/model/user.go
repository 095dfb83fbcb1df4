package model

import (
	"time"
)

type UserRole string

const (
	Freelancer UserRole = "freelancer"
	Client     UserRole = "client"
	Admin      UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case Freelancer, Client, Admin:
		return true
	}
	return false
}

// swagger:model User
type User struct {
	BaseModel
	Name           string          `gorm:"size:100;not null" json:"name"`
	Email          string          `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password       string          `gorm:"size:100;not null" json:"-"`
	Role           UserRole        `gorm:"size:20;default:'freelancer'" json:"role"`
	IsSeller       bool            `gorm:"default:false" json:"isSeller"`
	SellerSince    *time.Time      `json:"sellerSince,omitempty"`
	Certifications []Certification `gorm:"foreignKey:UserID" json:"certifications"`
}

func (User) TableName() string {
	return "users"
}

package models

import (
	"time"

	"workday/internal/domain"
)

type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;index" json:"company_id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName     string    `gorm:"size:255" json:"full_name"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         string    `gorm:"size:20;not null;index" json:"role"` // EMPLOYEE | ADMIN
	GoogleID     *string   `gorm:"uniqueIndex;size:255" json:"-"`     // nil for password accounts
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Company *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }

package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a platform member. Members sit in a binary tree: every member except
// the roots has a placement parent and a position (left or right) under it.
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	EncryptedPassword string     `gorm:"column:encrypted_password;not null" json:"-"`
	Role              string     `gorm:"default:user" json:"role"`
	FullName          string     `json:"full_name"`
	Phone             string     `json:"phone"`
	Status            string     `gorm:"default:active;index" json:"status"`
	SponsorID         *uint      `gorm:"index" json:"sponsor_id"`
	ParentID          *uint      `gorm:"uniqueIndex:idx_users_parent_position" json:"parent_id"`
	Position          *Leg       `gorm:"size:10;uniqueIndex:idx_users_parent_position" json:"position"`
	DiscardedAt       *time.Time `gorm:"index" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Associations
	Sponsor *User `gorm:"foreignKey:SponsorID" json:"-"`
	Parent  *User `gorm:"foreignKey:ParentID" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook for setting defaults
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	return nil
}

// IsAdmin returns true if user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true if user status is active
func (u *User) IsActive() bool {
	return u.Status == StatusActive && u.DiscardedAt == nil
}

// PlacementLeg returns the member's position under its parent, or LegNone for roots
func (u *User) PlacementLeg() Leg {
	if u.ParentID == nil || u.Position == nil {
		return LegNone
	}
	return *u.Position
}

// Role constants
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Status constants
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// UserResponse is the JSON response format for users
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	SponsorID *uint     `json:"sponsor_id"`
	ParentID  *uint     `json:"parent_id"`
	Position  Leg       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Role:      u.Role,
		Status:    u.Status,
		SponsorID: u.SponsorID,
		ParentID:  u.ParentID,
		Position:  u.PlacementLeg(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// TreeNode is one member of a binary genealogy tree
type TreeNode struct {
	ID       uint      `json:"id"`
	FullName string    `json:"full_name"`
	Status   string    `json:"status"`
	Position Leg       `json:"position"`
	Left     *TreeNode `json:"left"`
	Right    *TreeNode `json:"right"`
}

package models

import "time"

const (
	RoleOfficer  = 1
	RoleReviewer = 2
	RoleAdmin    = 3
)

// Officer is a person who can be reviewed, review others, or administer periods.
// Records are managed by user administration; the workflow only reads them.
type Officer struct {
	OfficerID int        `gorm:"primaryKey;column:officer_id" json:"officer_id"`
	Name      string     `gorm:"column:name" json:"name"`
	Email     string     `gorm:"column:email;uniqueIndex;size:191" json:"email"`
	RoleID    int        `gorm:"column:role_id" json:"role_id"`
	IsActive  bool       `gorm:"column:is_active" json:"is_active"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt *time.Time `gorm:"column:updated_at" json:"updated_at,omitempty"`
}

func (Officer) TableName() string {
	return "officers"
}

// IsAdmin reports whether the officer holds the admin role.
func (o Officer) IsAdmin() bool {
	return o.RoleID == RoleAdmin
}

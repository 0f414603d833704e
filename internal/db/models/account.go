package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleIssuer  Role = "issuer"
	RoleStudent Role = "student"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleIssuer, RoleStudent:
		return Role(s), true
	}
	return "", false
}

// AccountRole is one held role for one address. An address with no rows is
// simply unknown; empty role sets are never persisted.
type AccountRole struct {
	gorm.Model
	Address string `gorm:"uniqueIndex:idx_account_role;not null;size:42"`
	Role    Role   `gorm:"uniqueIndex:idx_account_role;not null"`
	TxHash  string
}

// AdminUser backs the out-of-band console login. Admin standing is
// provisioned here and through seeded addresses, never via the role
// grant endpoint.
type AdminUser struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Address      string `gorm:"size:42"`
	LastLogin    time.Time
}

package models

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor
}

func (Role) EnumValues() []any {
	return []any{string(RoleAdmin), string(RoleEditor)}
}

// Account is a CMS operator. RefreshTokenHash holds the hash of the single
// refresh token currently valid for the account, empty when signed out.
// TokenVersion increases on every write to RefreshTokenHash.
type Account struct {
	ID               string    `json:"_id" gorm:"primaryKey;size:26"`
	Name             string    `json:"name" gorm:"size:80;not null"`
	Email            string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash     string    `json:"-" gorm:"size:255;not null"`
	Role             Role      `json:"role" gorm:"size:16;not null;default:EDITOR"`
	RefreshTokenHash string    `json:"-" gorm:"size:255;not null;default:''"`
	TokenVersion     uint64    `json:"-" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	if a.Role == "" {
		a.Role = RoleEditor
	}
	a.Email = NormalizeEmail(a.Email)
	return nil
}

type Profile struct {
	ID    string `json:"_id" example:"01HZX3J6Q8M5W2T9K4B7N1C0DE"`
	Name  string `json:"name" example:"WebMitra Admin"`
	Email string `json:"email" example:"admin@webmitra.tech"`
	Role  Role   `json:"role" example:"ADMIN"`
}

func (a *Account) PublicProfile() Profile {
	return Profile{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

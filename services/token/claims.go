package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/webmitra3-cloud/webmitra.tech/models"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Identity struct {
	AccountID string
	Role      models.Role
}

// Claims is implemented only by AccessClaims and RefreshClaims.
type Claims interface {
	Kind() Kind
	Identity() Identity
	claims()
}

type AccessClaims struct {
	Subject   string
	Role      models.Role
	ID        string
	ExpiresAt jwt.NumericDate
}

func (c *AccessClaims) Kind() Kind { return KindAccess }

func (c *AccessClaims) Identity() Identity {
	return Identity{AccountID: c.Subject, Role: c.Role}
}

func (*AccessClaims) claims() {}

type RefreshClaims struct {
	Subject   string
	Role      models.Role
	ID        string
	Version   uint64
	ExpiresAt jwt.NumericDate
}

func (c *RefreshClaims) Kind() Kind { return KindRefresh }

func (c *RefreshClaims) Identity() Identity {
	return Identity{AccountID: c.Subject, Role: c.Role}
}

func (*RefreshClaims) claims() {}

// wireClaims is the JSON payload shared by both token kinds.
type wireClaims struct {
	Role    models.Role `json:"role"`
	Type    Kind        `json:"type"`
	Version uint64      `json:"ver,omitempty"`
	jwt.RegisteredClaims
}

func (w *wireClaims) decode() (Claims, error) {
	if w.Subject == "" {
		return nil, ErrInvalidToken
	}

	var exp jwt.NumericDate
	if w.ExpiresAt != nil {
		exp = *w.ExpiresAt
	}

	switch w.Type {
	case KindAccess:
		return &AccessClaims{Subject: w.Subject, Role: w.Role, ID: w.ID, ExpiresAt: exp}, nil
	case KindRefresh:
		return &RefreshClaims{Subject: w.Subject, Role: w.Role, ID: w.ID, Version: w.Version, ExpiresAt: exp}, nil
	default:
		return nil, ErrWrongTokenType
	}
}

// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider names an external identity source.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderVK     Provider = "vk"
)

// Providers lists every provider the service accepts, in display order.
var Providers = []Provider{ProviderGoogle, ProviderVK}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

func (p Provider) String() string { return string(p) }

// User is an internal account bound to exactly one provider identity.
//
// The pair (Provider, ProviderUserID) is unique in storage. Balance is kept in
// minor currency units and may go negative; nothing here enforces a floor.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	AvatarURL      string    `json:"avatar_url"`
	Provider       Provider  `json:"provider"`
	ProviderUserID string    `json:"-"`
	Balance        int64     `json:"balance"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ExternalProfile is the normalized profile an identity provider returns after
// a successful code exchange. Email and AvatarURL may be empty.
type ExternalProfile struct {
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

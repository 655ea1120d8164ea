package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// Password holds a bcrypt hash and must never appear in any outbound
// representation; the HTTP layer strips it when building responses.
//
// ID is assigned by the persistence layer on first insert and is
// immutable afterwards. LastUpdated is stamped by the application
// service on every accepted write.
type User struct {
	ID          int64
	Name        string
	Email       string
	Login       string
	Password    string
	Address     string
	UserType    UserType
	AvatarURL   string
	LastUpdated time.Time
}

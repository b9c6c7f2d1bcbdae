package models

import "time"

// AdminSession is the record created by a successful admin login.
type AdminSession struct {
	ID        string    `json:"id"`
	ClientKey string    `json:"clientKey"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"isValid"`
}

// ExpiresAt returns the moment the session stops being valid for ttl.
func (s *AdminSession) ExpiresAt(ttl time.Duration) time.Time {
	return s.Timestamp.Add(ttl)
}

// LockoutState counts consecutive failed password checks for one client.
type LockoutState struct {
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

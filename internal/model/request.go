// Package model contains the struct definitions shared across packages.
package model

import (
	"time"
)

// Status describes where an emergency request sits in its lifecycle. In Go a
// type declared via "type X string" creates a new named type with string as
// the underlying representation, enabling better type safety than using
// plain strings.
type Status string

const (
	StatusPending   Status = "pending"
	StatusGranted   Status = "granted"
	StatusDismissed Status = "dismissed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusGranted, StatusDismissed:
		return true
	}
	return false
}

// EmergencyRequest is a single medical-transport request. Code and GrantedAt
// are pointers without omitempty so clients polling a pending request see
// explicit JSON nulls rather than missing fields; both are set if and only
// if Status is granted.
type EmergencyRequest struct {
	ID                 string     `json:"id"`
	PatientName        string     `json:"patientName"`
	ProblemDescription string     `json:"problemDescription"`
	Details            string     `json:"details,omitempty"`
	OwnerID            string     `json:"ownerId,omitempty"`
	Status             Status     `json:"status"`
	Code               *string    `json:"code"`
	GrantedAt          *time.Time `json:"grantedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Granted reports whether the request currently carries an active siren code.
func (r *EmergencyRequest) Granted() bool {
	return r.Status == StatusGranted
}

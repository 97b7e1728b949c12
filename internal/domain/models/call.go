// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"time"
)

// CallUser is the user reference attached to call records by the calling backend.
type CallUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// CallMember is a user listed as a member of a call.
type CallMember struct {
	UserID    string     `json:"user_id"`
	User      CallUser   `json:"user"`
	Role      string     `json:"role,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Call is a snapshot of a scheduled or past video call owned by the calling backend.
// This service only reads these records, it never writes them back.
type Call struct {
	ID          string       `json:"id"`
	CID         string       `json:"cid"`
	Type        string       `json:"type"`
	CreatedBy   CallUser     `json:"created_by"`
	StartsAt    *time.Time   `json:"starts_at,omitempty"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	Description string       `json:"description,omitempty"`
	Members     []CallMember `json:"members,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// IsEnded reports whether the call started strictly before now or has an end timestamp.
func (c *Call) IsEnded(now time.Time) bool {
	if c == nil {
		return false
	}
	return (c.StartsAt != nil && c.StartsAt.Before(now)) || c.EndedAt != nil
}

// IsUpcoming reports whether the call starts strictly after now and has not ended.
func (c *Call) IsUpcoming(now time.Time) bool {
	if c == nil {
		return false
	}
	return c.StartsAt != nil && c.StartsAt.After(now) && c.EndedAt == nil
}

// HasParticipant reports whether userID created the call or is listed as a member.
func (c *Call) HasParticipant(userID string) bool {
	if c == nil || userID == "" {
		return false
	}
	if c.CreatedBy.ID == userID {
		return true
	}
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// EndedCalls filters calls down to the ones that ended as of now.
// The returned slice shares the records with calls. A nil input yields nil.
func EndedCalls(calls []*Call, now time.Time) []*Call {
	return filterCalls(calls, func(c *Call) bool { return c.IsEnded(now) })
}

// UpcomingCalls filters calls down to the ones scheduled strictly after now.
// The returned slice shares the records with calls. A nil input yields nil.
func UpcomingCalls(calls []*Call, now time.Time) []*Call {
	return filterCalls(calls, func(c *Call) bool { return c.IsUpcoming(now) })
}

func filterCalls(calls []*Call, keep func(*Call) bool) []*Call {
	if calls == nil {
		return nil
	}
	filtered := make([]*Call, 0, len(calls))
	for _, c := range calls {
		if keep(c) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

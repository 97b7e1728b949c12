// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package stream

import (
	"time"

	"github.com/linuxfoundation/lfx-v2-call-service/internal/domain/models"
)

// sortParamRequest is a sort entry of a backend query
type sortParamRequest struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// queryCallsRequest represents the body of a call query
type queryCallsRequest struct {
	FilterConditions map[string]any     `json:"filter_conditions,omitempty"`
	Sort             []sortParamRequest `json:"sort,omitempty"`
	Limit            int                `json:"limit,omitempty"`
	Next             string             `json:"next,omitempty"`
	Watch            bool               `json:"watch"`
}

func newQueryCallsBody(req *models.QueryCallsRequest) queryCallsRequest {
	body := queryCallsRequest{
		FilterConditions: req.FilterConditions,
		Limit:            req.Limit,
		Next:             req.Next,
	}
	for _, s := range req.Sort {
		body.Sort = append(body.Sort, sortParamRequest{Field: s.Field, Direction: s.Direction})
	}
	return body
}

// userResponse is a backend user
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

func (u userResponse) toModel() models.CallUser {
	return models.CallUser{ID: u.ID, Name: u.Name, Image: u.Image}
}

// memberResponse is a call membership
type memberResponse struct {
	UserID    string       `json:"user_id"`
	User      userResponse `json:"user"`
	Role      string       `json:"role,omitempty"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
}

// callResponse is the call description of a query result
type callResponse struct {
	ID        string         `json:"id"`
	CID       string         `json:"cid"`
	Type      string         `json:"type"`
	CreatedBy userResponse   `json:"created_by"`
	StartsAt  *time.Time     `json:"starts_at,omitempty"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Custom    map[string]any `json:"custom,omitempty"`
}

// callStateResponse is one entry of a query result
type callStateResponse struct {
	Call    callResponse     `json:"call"`
	Members []memberResponse `json:"members,omitempty"`
}

// queryCallsResponse represents the backend reply to a call query
type queryCallsResponse struct {
	Calls    []callStateResponse `json:"calls"`
	Next     string              `json:"next,omitempty"`
	Duration string              `json:"duration,omitempty"`
}

func (r queryCallsResponse) toModel() *models.QueryCallsResponse {
	calls := make([]*models.Call, 0, len(r.Calls))
	for _, entry := range r.Calls {
		calls = append(calls, entry.toModel())
	}
	return &models.QueryCallsResponse{Calls: calls, Next: r.Next}
}

func (s callStateResponse) toModel() *models.Call {
	call := &models.Call{
		ID:        s.Call.ID,
		CID:       s.Call.CID,
		Type:      s.Call.Type,
		CreatedBy: s.Call.CreatedBy.toModel(),
		StartsAt:  s.Call.StartsAt,
		EndedAt:   s.Call.EndedAt,
		CreatedAt: s.Call.CreatedAt,
		UpdatedAt: s.Call.UpdatedAt,
	}
	if description, ok := s.Call.Custom["description"].(string); ok {
		call.Description = description
	}
	for _, m := range s.Members {
		call.Members = append(call.Members, models.CallMember{
			UserID:    m.UserID,
			User:      m.User.toModel(),
			Role:      m.Role,
			CreatedAt: m.CreatedAt,
		})
	}
	return call
}

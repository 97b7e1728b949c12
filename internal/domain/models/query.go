// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// Sort directions understood by the calling backend.
const (
	SortAscending  = 1
	SortDescending = -1
)

// Call fields used in filters and sort parameters.
const (
	FieldID              = "id"
	FieldStartsAt        = "starts_at"
	FieldCreatedByUserID = "created_by_user_id"
	FieldMembers         = "members"
)

// SortParam orders query results by a single field.
type SortParam struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// QueryCallsRequest is the filter and sort sent to the calling backend's query calls operation.
// FilterConditions uses the backend's MongoDB-style operators ($in, $or, $exists).
type QueryCallsRequest struct {
	FilterConditions map[string]any `json:"filter_conditions,omitempty"`
	Sort             []SortParam    `json:"sort,omitempty"`
	Limit            int            `json:"limit,omitempty"`
	Next             string         `json:"next,omitempty"`
}

// QueryCallsResponse holds the calls matched by a query.
type QueryCallsResponse struct {
	Calls []*Call `json:"calls"`
	Next  string  `json:"next,omitempty"`
}

// NewCallsByIDQuery builds a query matching calls by id equality.
// More than one candidate id matches any of them.
func NewCallsByIDQuery(ids ...string) *QueryCallsRequest {
	var cond any
	switch len(ids) {
	case 1:
		cond = ids[0]
	default:
		cond = map[string]any{"$in": append([]string(nil), ids...)}
	}
	return &QueryCallsRequest{
		FilterConditions: map[string]any{
			FieldID: cond,
		},
	}
}

// NewUserCallsQuery builds the query for every scheduled call that userID created or is a member of,
// newest scheduled start first.
func NewUserCallsQuery(userID string) *QueryCallsRequest {
	return &QueryCallsRequest{
		Sort: []SortParam{
			{Field: FieldStartsAt, Direction: SortDescending},
		},
		FilterConditions: map[string]any{
			FieldStartsAt: map[string]any{"$exists": true},
			"$or": []any{
				map[string]any{FieldCreatedByUserID: userID},
				map[string]any{FieldMembers: map[string]any{"$in": []string{userID}}},
			},
		},
	}
}

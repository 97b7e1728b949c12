// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"github.com/linuxfoundation/lfx-v2-call-service/pkg/utils"
)

// Identity is the authenticated user as reported by the identity provider.
// A nil *Identity means the provider has not resolved a user yet.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// DisplayName returns the username, falling back to the identity id.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	return utils.Coalesce(i.Username, i.ID)
}

// Ready reports whether the identity carries a usable user id.
func (i *Identity) Ready() bool {
	return i != nil && i.ID != ""
}

// Equal reports whether two identities hold the same values.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	return *i == *other
}

// ClientUser is the user payload a call client connects as.
func (i *Identity) ClientUser() CallUser {
	if i == nil {
		return CallUser{}
	}
	return CallUser{
		ID:    i.ID,
		Name:  i.DisplayName(),
		Image: i.ImageURL,
	}
}

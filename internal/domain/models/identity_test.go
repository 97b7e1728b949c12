// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		identity *Identity
		expected string
	}{
		{"nil identity", nil, ""},
		{"username wins", &Identity{ID: "u1", Username: "ada"}, "ada"},
		{"falls back to id", &Identity{ID: "u1"}, "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.identity.DisplayName())
		})
	}
}

func TestIdentity_Ready(t *testing.T) {
	var pending *Identity
	assert.False(t, pending.Ready())
	assert.False(t, (&Identity{}).Ready())
	assert.True(t, (&Identity{ID: "u1"}).Ready())
}

func TestIdentity_Equal(t *testing.T) {
	a := &Identity{ID: "u1", Username: "ada", ImageURL: "https://img/ada.png"}
	same := &Identity{ID: "u1", Username: "ada", ImageURL: "https://img/ada.png"}
	renamed := &Identity{ID: "u1", Username: "lovelace", ImageURL: "https://img/ada.png"}

	assert.True(t, a.Equal(same))
	assert.False(t, a.Equal(renamed))
	assert.False(t, a.Equal(nil))

	var nilIdentity *Identity
	assert.True(t, nilIdentity.Equal(nil))
}

func TestIdentity_ClientUser(t *testing.T) {
	identity := &Identity{ID: "u1", ImageURL: "https://img/u1.png"}

	assert.Equal(t, CallUser{ID: "u1", Name: "u1", Image: "https://img/u1.png"}, identity.ClientUser())

	var nilIdentity *Identity
	assert.Equal(t, CallUser{}, nilIdentity.ClientUser())
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Calling backend defaults
const (
	// DefaultStreamBaseURL is the calling backend's video API origin
	DefaultStreamBaseURL = "https://video.stream-io-api.com"

	// DefaultStreamTokenTTL is the validity of backend user tokens
	DefaultStreamTokenTTL = time.Hour
)

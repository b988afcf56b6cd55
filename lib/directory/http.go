// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/concordnet/concord/lib/ref"
)

const (
	defaultRequestTimeout = 10 * time.Second

	// maxProfileBytes bounds how much of a directory response is
	// read. Profiles are small; anything larger is malformed.
	maxProfileBytes = 64 * 1024
)

// HTTPDirectory resolves users against an external identity provider
// over JSON/HTTP. The provider serves GET {base}/users/{id} with a
// Profile body; 404 means unknown user.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates a directory client for the given base URL.
func NewHTTPDirectory(baseURL string) (*HTTPDirectory, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("directory base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("directory base URL %q: scheme must be http or https", baseURL)
	}
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// SetTimeout overrides the default request timeout. Zero and negative
// durations are ignored.
func (d *HTTPDirectory) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.client.Timeout = timeout
	}
}

// Resolve implements Directory. Transport failures and malformed
// responses wrap ErrUnknownUser so that callers fail closed.
func (d *HTTPDirectory) Resolve(ctx context.Context, userID ref.ID) (*Profile, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("%w: zero user ID", ErrUnknownUser)
	}
	requestURL := d.baseURL + "/users/" + url.PathEscape(userID.String())
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUnknownUser, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := d.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: directory unreachable: %v", ErrUnknownUser, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxProfileBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnknownUser, err)
	}
	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: directory returned %d for %s",
			ErrUnknownUser, response.StatusCode, userID)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %v", ErrUnknownUser, err)
	}
	if profile.UserID.IsZero() {
		profile.UserID = userID
	}
	if profile.UserID != userID {
		return nil, fmt.Errorf("%w: directory returned profile for %s, asked for %s",
			ErrUnknownUser, profile.UserID, userID)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownUser, err)
	}
	return &profile, nil
}

package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/docker/docker/api/types"
)

const listPath = "/containers/json?all=1"

// Find returns the id of the first container, stopped ones included, whose
// name list contains name or "/"+name. Listing order decides ties.
func (c *Client) Find(ctx context.Context, name string) (string, error) {
	resp, err := c.Call(ctx, http.MethodGet, listPath, nil)
	if err != nil {
		return "", fmt.Errorf("unable to get containers list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewStatusError(http.MethodGet, listPath, resp)
	}

	if len(resp.Body) == 0 || resp.Body[0] != '[' {
		return "", fmt.Errorf("unable to get containers list: %w", ErrMalformedResponse)
	}

	var containers []types.Container
	if err := resp.Decode(&containers); err != nil {
		return "", fmt.Errorf("invalid containers list: %w", ErrMalformedResponse)
	}

	for _, ctr := range containers {
		if !HasName(ctr.Names, name) {
			continue
		}
		if ctr.ID == "" {
			return "", fmt.Errorf("unable to get container id for %s: %w", name, ErrMalformedResponse)
		}
		return ctr.ID, nil
	}

	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// HasName reports whether names contains name, with or without the leading
// slash the engine adds.
func HasName(names []string, name string) bool {
	for _, n := range names {
		if n == name || n == "/"+name {
			return true
		}
	}
	return false
}

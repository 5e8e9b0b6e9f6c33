package fetch

import (
	"context"
	"encoding/json"
	"fmt"
)

// FetchJSON executes the request and decodes the body into dest. A decode
// failure is structural and is never retried.
func (c *Client) FetchJSON(ctx context.Context, req Request, dest any) error {
	body, err := c.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode json from %s: %w", req.URL, err)
	}
	return nil
}

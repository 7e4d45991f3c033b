package anilist

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"
)

// SaveListStatus sets the viewer's list status for a catalog entry, adding the
// entry to the viewer's list when needed.
func (c *Client) SaveListStatus(ctx context.Context, id string, status string) error {
	return c.saveListEntry(ctx, id, "status", status)
}

// SaveNotes replaces the viewer's private notes on a list entry.
func (c *Client) SaveNotes(ctx context.Context, id string, notes string) error {
	return c.saveListEntry(ctx, id, "notes", notes)
}

// saveListEntry updates a single field of the viewer's list entry.
func (c *Client) saveListEntry(ctx context.Context, id, field string, value string) error {
	if err := c.requireToken("save list entry"); err != nil {
		return err
	}

	mediaID, err := parseID(id)
	if err != nil {
		return err
	}

	req := graphql.NewRequest(`
		mutation($mediaId: Int, $status: MediaListStatus, $notes: String) {
			SaveMediaListEntry(mediaId: $mediaId, status: $status, notes: $notes) {
				id
				status
				notes
			}
		}
	`)
	req.Var("mediaId", mediaID)
	// Unset variables leave the other field of the entry untouched.
	switch field {
	case "status":
		req.Var("status", value)
	case "notes":
		req.Var("notes", value)
	}

	var resp struct {
		SaveMediaListEntry struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
			Notes  string `json:"notes"`
		} `json:"SaveMediaListEntry"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to save list %s: %w", field, err)
	}

	c.logger.Debug("saved list entry",
		"media", id,
		"field", field,
		"entry", resp.SaveMediaListEntry.ID,
	)
	return nil
}

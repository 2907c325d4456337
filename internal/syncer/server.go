// Package syncer reconciles local state with the platform server and with
// other running instances: periodic polling, realtime push updates with
// echo suppression, and storage-watch merges between instances sharing a
// persistence backend.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"git.ecosistema.dev/plataforma/statecore/internal/api"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/realtime"
)

const updatesPath = "/api/state/updates"

// ServerClient speaks the platform's state reconciliation endpoints.
type ServerClient struct {
	client *api.Client
}

// NewServerClient wraps an API client.
func NewServerClient(client *api.Client) *ServerClient {
	return &ServerClient{client: client}
}

type pullResponse struct {
	Updates []realtime.Update `json:"updates"`
}

type pushRequest struct {
	Origin  string            `json:"origin"`
	Updates []realtime.Update `json:"updates"`
}

// Pull fetches updates recorded on the server after since.
func (s *ServerClient) Pull(ctx context.Context, since time.Time) ([]realtime.Update, error) {
	path := fmt.Sprintf("%s?since=%s", updatesPath, url.QueryEscape(since.UTC().Format(time.RFC3339Nano)))
	raw, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, ferrors.SyncError("pulling server updates failed").
			WithCause(err).
			Build()
	}
	var resp pullResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, ferrors.SyncError("malformed server update response").
			WithCause(err).
			Build()
	}
	return resp.Updates, nil
}

// Push uploads locally-committed updates.
func (s *ServerClient) Push(ctx context.Context, origin string, updates []realtime.Update) error {
	if len(updates) == 0 {
		return nil
	}
	if _, err := s.client.Post(ctx, updatesPath, pushRequest{Origin: origin, Updates: updates}); err != nil {
		return ferrors.SyncError("pushing local updates failed").
			WithContext("updates", len(updates)).
			WithCause(err).
			Build()
	}
	return nil
}

package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Session is an authenticated Matrix client for one user.
type Session struct {
	client      *Client
	accessToken string
	userID      string
	deviceID    string
}

// NewSession creates a Session from an existing access token.
// The token is not validated until the first request.
func (c *Client) NewSession(userID, accessToken string) *Session {
	return &Session{client: c, userID: userID, accessToken: accessToken}
}

// UserID returns the Matrix user ID of the session.
func (s *Session) UserID() string {
	return s.userID
}

// DeviceID returns the device ID assigned at login.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// JoinRoom joins a room by ID or alias. Joining a room already joined is a no-op.
func (s *Session) JoinRoom(ctx context.Context, roomIDOrAlias string) (string, error) {
	if s.accessToken == "" {
		return "", ErrNotLoggedIn
	}
	path := "/_matrix/client/v3/join/" + url.PathEscape(roomIDOrAlias)
	body, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{}, nil)
	if err != nil {
		return "", fmt.Errorf("matrix: join %q failed: %w", roomIDOrAlias, err)
	}

	var response JoinResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("matrix: failed to parse join response: %w", err)
	}
	return response.RoomID, nil
}

// Sync performs an incremental sync with the homeserver.
// For initial sync, leave options.Since empty.
func (s *Session) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	if s.accessToken == "" {
		return nil, ErrNotLoggedIn
	}
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	query.Set("timeout", strconv.Itoa(options.Timeout))
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("matrix: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("matrix: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// SendMessage sends an m.room.message event to a room and returns its event ID.
// Uses Matrix's idempotent PUT with a fresh transaction ID.
func (s *Session) SendMessage(ctx context.Context, roomID string, content MessageContent) (string, error) {
	if s.accessToken == "" {
		return "", ErrNotLoggedIn
	}
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/%s/%s",
		url.PathEscape(roomID),
		url.PathEscape(EventRoomMessage),
		url.PathEscape(uuid.NewString()),
	)

	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content, nil)
	if err != nil {
		return "", fmt.Errorf("matrix: send message to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("matrix: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

// MessageFilter is an inline sync filter that limits sync to room messages.
const MessageFilter = `{"presence":{"types":[]},"account_data":{"types":[]},"room":{"state":{"types":[]},"ephemeral":{"types":[]},"account_data":{"types":[]},"timeline":{"types":["m.room.message"]}}}`

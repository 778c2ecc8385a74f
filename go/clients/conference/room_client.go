package conference

import (
	"context"
	"fmt"

	"github.com/mcdev12/buzzer/go/clients"
)

const (
	createRoomPath = "/twirp/livekit.RoomService/CreateRoom"
	deleteRoomPath = "/twirp/livekit.RoomService/DeleteRoom"

	twirpNotFound = "not_found"
)

// RoomClient calls the LiveKit RoomService over its JSON twirp API.
type RoomClient struct {
	*clients.BaseClient
	issuer *LiveKitIssuer
}

// NewRoomClient returns nil when issuer is not a LiveKit issuer.
func NewRoomClient(issuer TokenIssuer) *RoomClient {
	lk, ok := issuer.(*LiveKitIssuer)
	if !ok {
		return nil
	}
	return &RoomClient{
		BaseClient: clients.NewBaseClient(httpURL(lk.config.URL)),
		issuer:     lk,
	}
}

type roomRequest struct {
	Name string `json:"name"`
}

type createRoomResponse struct {
	Name string `json:"name"`
	SID  string `json:"sid"`
}

// CreateRoom makes sure the conference room exists. Creating an existing room is a no-op.
func (c *RoomClient) CreateRoom(ctx context.Context, name string) (string, error) {
	var resp createRoomResponse
	if err := c.call(ctx, createRoomPath, roomRequest{Name: name}, &resp); err != nil {
		return "", fmt.Errorf("failed to create conference room %s: %w", name, err)
	}
	return resp.SID, nil
}

// DeleteRoom removes the conference room. A room that is already gone is not an error.
func (c *RoomClient) DeleteRoom(ctx context.Context, name string) error {
	err := c.call(ctx, deleteRoomPath, roomRequest{Name: name}, nil)
	if clients.IsErrorCode(err, twirpNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete conference room %s: %w", name, err)
	}
	return nil
}

func (c *RoomClient) call(ctx context.Context, path string, in, out any) error {
	token, err := c.issuer.serviceToken()
	if err != nil {
		return err
	}
	return c.PostJSON(ctx, path, in, out, map[string]string{"Authorization": "Bearer " + token})
}

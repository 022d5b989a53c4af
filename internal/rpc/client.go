// ABOUTME: Client for the face service using the JSON codec over gRPC.
// ABOUTME: Used by facectl and by tests.

package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/2389/face-gateway/internal/interaction"
)

// Client calls a remote face service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the face service at addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, req *Req) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListFaces(ctx context.Context) (*ListFacesResponse, error) {
	return invoke[ListFacesRequest, ListFacesResponse](ctx, c, "ListFaces", &ListFacesRequest{})
}

func (c *Client) CreateFace(ctx context.Context, req CreateFaceRequest) (string, error) {
	resp, err := invoke[CreateFaceRequest, CreateFaceResponse](ctx, c, "CreateFace", &req)
	if err != nil {
		return "", err
	}
	return resp.FaceID, nil
}

func (c *Client) ReadFace(ctx context.Context, faceID string) (*ReadFaceResponse, error) {
	return invoke[FaceRequest, ReadFaceResponse](ctx, c, "ReadFace", &FaceRequest{FaceID: faceID})
}

func (c *Client) DestroyFace(ctx context.Context, faceID string) error {
	_, err := invoke[FaceRequest, DestroyFaceResponse](ctx, c, "DestroyFace", &FaceRequest{FaceID: faceID})
	return err
}

func (c *Client) InteractionStart(ctx context.Context, faceID, input string) (string, error) {
	resp, err := invoke[InteractionStartRequest, InteractionStartResponse](ctx, c, "InteractionStart",
		&InteractionStartRequest{FaceID: faceID, Input: input})
	if err != nil {
		return "", err
	}
	return resp.InteractionID, nil
}

func (c *Client) InteractionAwait(ctx context.Context, faceID, interactionID string) (string, error) {
	resp, err := invoke[InteractionRequest, InteractionAwaitResponse](ctx, c, "InteractionAwait",
		&InteractionRequest{FaceID: faceID, InteractionID: interactionID})
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (c *Client) InteractionCancel(ctx context.Context, faceID, interactionID string) (interaction.CancelResult, error) {
	resp, err := invoke[InteractionRequest, InteractionCancelResponse](ctx, c, "InteractionCancel",
		&InteractionRequest{FaceID: faceID, InteractionID: interactionID})
	if err != nil {
		return interaction.CancelResult{}, err
	}
	return *resp, nil
}

func (c *Client) InteractionStatus(ctx context.Context, faceID, interactionID string) (interaction.State, error) {
	resp, err := invoke[InteractionRequest, InteractionStatusResponse](ctx, c, "InteractionStatus",
		&InteractionRequest{FaceID: faceID, InteractionID: interactionID})
	if err != nil {
		return "", err
	}
	return resp.State, nil
}

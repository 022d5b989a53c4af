// ABOUTME: Hand-written gRPC service description for the face control plane.
// ABOUTME: Messages are plain Go structs carried by the JSON codec.

package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/2389/face-gateway/internal/face"
	"github.com/2389/face-gateway/internal/interaction"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "faces.v1.FaceService"

// ListFacesRequest takes no arguments.
type ListFacesRequest struct{}

// ListFacesResponse carries the kind catalog and every live face with its
// resolved status.
type ListFacesResponse struct {
	FaceKinds []face.KindInfo `json:"face_kinds"`
	LiveFaces []face.Detail   `json:"live_faces"`
}

// CreateFaceRequest names the kind and optional home, workspace, view
// hostname and kind config.
type CreateFaceRequest = face.CreateRequest

// CreateFaceResponse carries the id of the new face.
type CreateFaceResponse struct {
	FaceID string `json:"faceId"`
}

// FaceRequest addresses one face for ReadFace and DestroyFace.
type FaceRequest struct {
	FaceID string `json:"faceId"`
}

// ReadFaceResponse is the face record with its resolved status.
type ReadFaceResponse = face.Detail

// DestroyFaceResponse confirms removal; Deleted is always true on success.
type DestroyFaceResponse struct {
	Deleted bool `json:"deleted"`
}

// InteractionStartRequest sends input to a face.
type InteractionStartRequest struct {
	FaceID string `json:"faceId"`
	Input  string `json:"input"`
}

// InteractionRequest addresses one interaction on one face.
type InteractionRequest struct {
	FaceID        string `json:"faceId"`
	InteractionID string `json:"interactionId"`
}

// InteractionStartResponse carries the id to await, cancel or poll.
type InteractionStartResponse struct {
	InteractionID string `json:"interactionId"`
}

// InteractionAwaitResponse carries the value the interaction resolved with.
type InteractionAwaitResponse struct {
	InteractionID string `json:"interactionId"`
	Value         string `json:"value"`
}

// InteractionCancelResponse reports whether a pending interaction was
// cancelled and whether the id was known at all.
type InteractionCancelResponse = interaction.CancelResult

// InteractionStatusResponse reports pending, completed, cancelled or
// unknown.
type InteractionStatusResponse struct {
	InteractionID string            `json:"interactionId"`
	State         interaction.State `json:"state"`
}

// FaceServiceServer is implemented by Server.
type FaceServiceServer interface {
	ListFaces(context.Context, *ListFacesRequest) (*ListFacesResponse, error)
	CreateFace(context.Context, *CreateFaceRequest) (*CreateFaceResponse, error)
	ReadFace(context.Context, *FaceRequest) (*ReadFaceResponse, error)
	DestroyFace(context.Context, *FaceRequest) (*DestroyFaceResponse, error)
	InteractionStart(context.Context, *InteractionStartRequest) (*InteractionStartResponse, error)
	InteractionAwait(context.Context, *InteractionRequest) (*InteractionAwaitResponse, error)
	InteractionCancel(context.Context, *InteractionRequest) (*InteractionCancelResponse, error)
	InteractionStatus(context.Context, *InteractionRequest) (*InteractionStatusResponse, error)
}

// FaceServiceDesc describes the service for grpc.Server.RegisterService.
var FaceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FaceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListFaces", FaceServiceServer.ListFaces),
		unary("CreateFace", FaceServiceServer.CreateFace),
		unary("ReadFace", FaceServiceServer.ReadFace),
		unary("DestroyFace", FaceServiceServer.DestroyFace),
		unary("InteractionStart", FaceServiceServer.InteractionStart),
		unary("InteractionAwait", FaceServiceServer.InteractionAwait),
		unary("InteractionCancel", FaceServiceServer.InteractionCancel),
		unary("InteractionStatus", FaceServiceServer.InteractionStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "faces/v1/faces",
}

// RegisterFaceServiceServer registers srv on s.
func RegisterFaceServiceServer(s grpc.ServiceRegistrar, srv FaceServiceServer) {
	s.RegisterService(&FaceServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary adapts a typed method into a grpc.MethodDesc, honouring interceptors.
func unary[Req, Resp any](method string, call func(FaceServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FaceServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(FaceServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

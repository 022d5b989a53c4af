// ABOUTME: gRPC server side of the face service, backed by face.Registry.
// ABOUTME: Maps registry and interaction errors onto gRPC status codes.

package rpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/face-gateway/internal/face"
	"github.com/2389/face-gateway/internal/interaction"
)

// Server implements FaceServiceServer.
type Server struct {
	registry *face.Registry
	logger   *slog.Logger
}

// NewServer creates a face service over reg.
func NewServer(reg *face.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: reg, logger: logger}
}

func (s *Server) ListFaces(ctx context.Context, _ *ListFacesRequest) (*ListFacesResponse, error) {
	return &ListFacesResponse{
		FaceKinds: s.registry.ListFaceKinds(),
		LiveFaces: s.registry.ListLiveFaces(ctx),
	}, nil
}

func (s *Server) CreateFace(ctx context.Context, req *CreateFaceRequest) (*CreateFaceResponse, error) {
	if req.KindID == "" {
		return nil, status.Error(codes.InvalidArgument, "faceKindId is required")
	}
	id, err := s.registry.CreateFace(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateFaceResponse{FaceID: id}, nil
}

func (s *Server) ReadFace(ctx context.Context, req *FaceRequest) (*ReadFaceResponse, error) {
	if req.FaceID == "" {
		return nil, status.Error(codes.InvalidArgument, "faceId is required")
	}
	detail, err := s.registry.ReadFace(ctx, req.FaceID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &detail, nil
}

func (s *Server) DestroyFace(ctx context.Context, req *FaceRequest) (*DestroyFaceResponse, error) {
	if req.FaceID == "" {
		return nil, status.Error(codes.InvalidArgument, "faceId is required")
	}
	if err := s.registry.DestroyFace(ctx, req.FaceID); err != nil {
		return nil, toStatus(err)
	}
	return &DestroyFaceResponse{Deleted: true}, nil
}

func (s *Server) InteractionStart(ctx context.Context, req *InteractionStartRequest) (*InteractionStartResponse, error) {
	f, err := s.face(req.FaceID)
	if err != nil {
		return nil, err
	}
	id, err := f.InteractionStart(ctx, req.Input)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug("interaction started", "face_id", req.FaceID, "interaction_id", id)
	return &InteractionStartResponse{InteractionID: id}, nil
}

func (s *Server) InteractionAwait(ctx context.Context, req *InteractionRequest) (*InteractionAwaitResponse, error) {
	f, err := s.interactionFace(req)
	if err != nil {
		return nil, err
	}
	value, err := f.InteractionAwait(ctx, req.InteractionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &InteractionAwaitResponse{InteractionID: req.InteractionID, Value: value}, nil
}

func (s *Server) InteractionCancel(ctx context.Context, req *InteractionRequest) (*InteractionCancelResponse, error) {
	f, err := s.interactionFace(req)
	if err != nil {
		return nil, err
	}
	res := f.InteractionCancel(req.InteractionID)
	return &res, nil
}

func (s *Server) InteractionStatus(ctx context.Context, req *InteractionRequest) (*InteractionStatusResponse, error) {
	f, err := s.interactionFace(req)
	if err != nil {
		return nil, err
	}
	return &InteractionStatusResponse{
		InteractionID: req.InteractionID,
		State:         f.InteractionStatus(req.InteractionID),
	}, nil
}

func (s *Server) face(id string) (face.Face, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "faceId is required")
	}
	f, err := s.registry.Face(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return f, nil
}

func (s *Server) interactionFace(req *InteractionRequest) (face.Face, error) {
	if req.InteractionID == "" {
		return nil, status.Error(codes.InvalidArgument, "interactionId is required")
	}
	return s.face(req.FaceID)
}

// toStatus converts domain errors to gRPC status errors.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, face.ErrFaceNotFound), errors.Is(err, interaction.ErrUnknown):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, face.ErrUnknownKind), errors.Is(err, face.ErrInvalidPath),
		errors.Is(err, interaction.ErrDuplicate):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, face.ErrProtected):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, face.ErrFaceClosed), errors.Is(err, interaction.ErrClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, interaction.ErrCancelled), errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

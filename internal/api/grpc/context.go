package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"gearbox-rental-backend/internal/api/grpc/interceptor"
)

// GetActorFromContext returns the staff id the auth interceptor attached.
func GetActorFromContext(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	actors := md.Get(interceptor.ActorHeader)
	if len(actors) == 0 || actors[0] == "" {
		return "", status.Errorf(codes.Unauthenticated, "actor is not provided in metadata")
	}
	return actors[0], nil
}

package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"gearbox-rental-backend/internal/security"
)

const secret = "0123456789abcdef0123456789abcdef"

func call(t *testing.T, i *AuthInterceptor, method string, md metadata.MD) (string, error) {
	t.Helper()
	ctx := metadata.NewIncomingContext(context.Background(), md)
	var actor string
	_, err := i.Unary()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, func(ctx context.Context, req interface{}) (interface{}, error) {
		in, _ := metadata.FromIncomingContext(ctx)
		if v := in.Get(ActorHeader); len(v) > 0 {
			actor = v[0]
		}
		return nil, nil
	})
	return actor, err
}

func TestAuthInterceptor(t *testing.T) {
	tm := security.NewTokenManager(secret, "gearbox-backoffice", time.Hour)
	i := NewAuthInterceptor(tm)
	admin, err := tm.GenerateAccessToken("admin-7", "", []string{security.RoleAdmin})
	require.NoError(t, err)
	viewer, err := tm.GenerateAccessToken("viewer-2", "", nil)
	require.NoError(t, err)

	t.Run("Admin token sets the actor and overrides a spoofed header", func(t *testing.T) {
		actor, err := call(t, i, "/gearbox.admin.v1.AdminService/ConfirmBooking",
			metadata.Pairs("authorization", "Bearer "+admin, ActorHeader, "mallory"))
		require.NoError(t, err)
		assert.Equal(t, "admin-7", actor)
	})

	t.Run("Viewer may read but not mutate", func(t *testing.T) {
		actor, err := call(t, i, "/gearbox.admin.v1.AdminService/GetBooking", metadata.Pairs("authorization", "Bearer "+viewer))
		require.NoError(t, err)
		assert.Equal(t, "viewer-2", actor)

		_, err = call(t, i, "/gearbox.admin.v1.AdminService/RejectBooking", metadata.Pairs("authorization", "Bearer "+viewer))
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("Missing or bad token", func(t *testing.T) {
		_, err := call(t, i, "/gearbox.admin.v1.AdminService/GetBooking", metadata.MD{})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))

		_, err = call(t, i, "/gearbox.admin.v1.AdminService/GetBooking", metadata.Pairs("authorization", "Bearer nope"))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("Public methods skip auth and drop client actor", func(t *testing.T) {
		actor, err := call(t, i, "/grpc.health.v1.Health/Check", metadata.Pairs(ActorHeader, "mallory"))
		require.NoError(t, err)
		assert.Empty(t, actor)
	})
}

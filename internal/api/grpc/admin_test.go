package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"gearbox-rental-backend/internal/api/grpc/interceptor"
	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/repository/memory"
	"gearbox-rental-backend/internal/security"
	"gearbox-rental-backend/internal/service"
	"gearbox-rental-backend/internal/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type adminClient struct {
	conn     *grpc.ClientConn
	store    *memory.Store
	bookings service.BookingService
	admin    string
	viewer   string
}

func newAdminClient(t *testing.T) *adminClient {
	t.Helper()
	store := memory.NewStore()
	store.PutEquipment(domain.Equipment{ID: "mic", Name: "Shure SM58", Category: "Microphones", Quantity: 1, Status: domain.EquipmentStatusActive})
	store.PutEquipment(domain.Equipment{ID: "spk", Name: "QSC K12", Category: "Speakers", Quantity: 2, Status: domain.EquipmentStatusActive})

	now := func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	bookings := service.NewBookingService(store, service.NewLogNotifier(), utils.DefaultLateFeePolicy, now)
	handler := NewAdminHandler(bookings, service.NewAvailabilityService(store), service.NewBackOfficeService(store, now))

	tm := security.NewTokenManager(testSecret, "gearbox-backoffice", time.Hour)
	auth := interceptor.NewAuthInterceptor(tm)
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.Unary()), grpc.StreamInterceptor(auth.Stream()))
	handler.Register(srv)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	admin, err := tm.GenerateAccessToken("staff-1", "ops@gearbox.test", []string{security.RoleAdmin})
	require.NoError(t, err)
	viewer, err := tm.GenerateAccessToken("staff-2", "desk@gearbox.test", nil)
	require.NoError(t, err)

	return &adminClient{conn: conn, store: store, bookings: bookings, admin: admin, viewer: viewer}
}

func (c *adminClient) invoke(token, method string, in any) (*structpb.Struct, error) {
	ctx := context.Background()
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	out := &structpb.Struct{}
	err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
	return out, err
}

func (c *adminClient) pending(t *testing.T, equipment ...string) string {
	t.Helper()
	b, err := c.bookings.Create(context.Background(), &domain.NewBookingRequest{
		EquipmentIDs: equipment,
		PickupDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ReturnDate:   time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		Customer:     domain.Customer{Name: "Dana", Email: "dana@example.com"},
	})
	require.NoError(t, err)
	return b.ID
}

func mustStruct(t *testing.T, v map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(v)
	require.NoError(t, err)
	return s
}

func TestAdminService_ConfirmBooking(t *testing.T) {
	c := newAdminClient(t)
	id := c.pending(t, "mic")

	out, err := c.invoke(c.admin, "ConfirmBooking", wrapperspb.String(id))
	require.NoError(t, err)
	booking := out.Fields["booking"].GetStructValue()
	require.NotNil(t, booking)
	assert.Equal(t, "Confirmed", booking.Fields["status"].GetStringValue())

	t.Run("Oversold carries shortfall detail", func(t *testing.T) {
		other := c.pending(t, "mic")
		_, err := c.invoke(c.admin, "ConfirmBooking", wrapperspb.String(other))
		st := status.Convert(err)
		assert.Equal(t, codes.ResourceExhausted, st.Code())
		require.Len(t, st.Details(), 1)
		detail, ok := st.Details()[0].(*structpb.Struct)
		require.True(t, ok)
		shortfalls := detail.Fields["shortfalls"].GetListValue().GetValues()
		require.Len(t, shortfalls, 1)
		assert.Equal(t, "mic", shortfalls[0].GetStructValue().Fields["equipment_id"].GetStringValue())
	})

	t.Run("Viewer cannot confirm", func(t *testing.T) {
		_, err := c.invoke(c.viewer, "ConfirmBooking", wrapperspb.String(id))
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("Unknown booking", func(t *testing.T) {
		_, err := c.invoke(c.admin, "ConfirmBooking", wrapperspb.String("missing"))
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestAdminService_RejectBooking(t *testing.T) {
	c := newAdminClient(t)
	id := c.pending(t, "spk")

	out, err := c.invoke(c.admin, "RejectBooking", mustStruct(t, map[string]any{"booking_id": id, "reason": "no deposit"}))
	require.NoError(t, err)
	pb := out.Fields["past_booking"].GetStructValue()
	require.NotNil(t, pb)
	assert.Equal(t, id, pb.Fields["original_booking_id"].GetStringValue())
	assert.Equal(t, "rejected", pb.Fields["action"].GetStringValue())
	assert.Equal(t, "staff-1", pb.Fields["action_by"].GetStringValue())

	list, err := c.invoke(c.viewer, "ListPastBookings", mustStruct(t, map[string]any{"action": "rejected"}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), list.Fields["total"].GetNumberValue())

	_, err = c.invoke(c.admin, "GetBooking", wrapperspb.String(id))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestAdminService_Lifecycle(t *testing.T) {
	c := newAdminClient(t)
	id := c.pending(t, "spk")

	for _, method := range []string{"ConfirmBooking", "ActivateBooking", "CompleteBooking"} {
		_, err := c.invoke(c.admin, method, wrapperspb.String(id))
		require.NoError(t, err, method)
	}

	_, err := c.invoke(c.admin, "RefundDeposit", wrapperspb.String(id))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = c.invoke(c.admin, "SubmitInspection", mustStruct(t, map[string]any{
		"booking_id":         id,
		"physical_condition": "Good",
		"audio_test":         true,
		"accessory_count":    4,
	}))
	require.NoError(t, err)

	out, err := c.invoke(c.admin, "RefundDeposit", wrapperspb.String(id))
	require.NoError(t, err)
	assert.True(t, out.Fields["booking"].GetStructValue().Fields["deposit_refunded"].GetBoolValue())

	_, err = c.invoke(c.admin, "RefundDeposit", wrapperspb.String(id))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	detail, err := c.invoke(c.viewer, "GetBooking", wrapperspb.String(id))
	require.NoError(t, err)
	inspection := detail.Fields["booking"].GetStructValue().Fields["inspection"].GetStructValue()
	require.NotNil(t, inspection)
	assert.Equal(t, "staff-1", inspection.Fields["completed_by"].GetStringValue())
}

func TestAdminService_ReadModels(t *testing.T) {
	c := newAdminClient(t)
	id := c.pending(t, "spk")
	_, err := c.invoke(c.admin, "ConfirmBooking", wrapperspb.String(id))
	require.NoError(t, err)

	t.Run("Inventory snapshot", func(t *testing.T) {
		out, err := c.invoke(c.viewer, "InventorySnapshot", wrapperspb.String("2026-03-11"))
		require.NoError(t, err)
		lines := out.Fields["equipment"].GetStructValue().GetFields()
		require.Len(t, lines, 2)
		spk := lines["spk"].GetStructValue()
		require.NotNil(t, spk)
		assert.Equal(t, float64(1), spk.Fields["booked"].GetNumberValue())
		assert.Equal(t, float64(1), spk.Fields["available"].GetNumberValue())
	})

	t.Run("Calendar", func(t *testing.T) {
		out, err := c.invoke(c.viewer, "ListCalendar", mustStruct(t, map[string]any{"from": "2026-03-01", "to": "2026-03-31"}))
		require.NoError(t, err)
		entries := out.Fields["entries"].GetListValue().GetValues()
		require.Len(t, entries, 1)
		assert.Equal(t, id, entries[0].GetStructValue().Fields["booking_id"].GetStringValue())
	})

	t.Run("Calendar rejects bad dates", func(t *testing.T) {
		_, err := c.invoke(c.viewer, "ListCalendar", mustStruct(t, map[string]any{"from": "soon", "to": "2026-03-31"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Missing token", func(t *testing.T) {
		_, err := c.invoke("", "GetBooking", wrapperspb.String(id))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestAdminService_Maintenance(t *testing.T) {
	c := newAdminClient(t)

	out, err := c.invoke(c.admin, "RecordMaintenance", mustStruct(t, map[string]any{
		"equipment_id": "mic",
		"status":       "InRepair",
		"notes":        "grille dented",
	}))
	require.NoError(t, err)
	entry := out.Fields["maintenance"].GetStructValue()
	assert.Equal(t, "staff-1", entry.Fields["repaired_by"].GetStringValue())

	mic, err := c.store.Equipment().GetByID(context.Background(), "mic")
	require.NoError(t, err)
	assert.Equal(t, domain.EquipmentStatusInRepair, mic.Status)

	logs, err := c.invoke(c.viewer, "ListMaintenance", wrapperspb.String("mic"))
	require.NoError(t, err)
	assert.Len(t, logs.Fields["maintenance"].GetListValue().GetValues(), 1)
}

package grpc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/service"
	"gearbox-rental-backend/internal/utils"
)

const ServiceName = "gearbox.admin.v1.AdminService"

// AdminHandler serves the back-office API. Messages are protobuf well-known
// types: a StringValue for single-id calls and a Struct otherwise.
type AdminHandler struct {
	bookings     service.BookingService
	availability service.AvailabilityService
	backOffice   service.BackOfficeService
}

func NewAdminHandler(bookings service.BookingService, availability service.AvailabilityService, backOffice service.BackOfficeService) *AdminHandler {
	return &AdminHandler{bookings: bookings, availability: availability, backOffice: backOffice}
}

// Register adds the AdminService to s.
func (h *AdminHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&AdminServiceDesc, h)
}

type adminServer interface {
	isAdminServer()
}

func (h *AdminHandler) isAdminServer() {}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*adminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ConfirmBooking", Handler: unary("ConfirmBooking", (*AdminHandler).ConfirmBooking)},
		{MethodName: "ActivateBooking", Handler: unary("ActivateBooking", (*AdminHandler).ActivateBooking)},
		{MethodName: "CompleteBooking", Handler: unary("CompleteBooking", (*AdminHandler).CompleteBooking)},
		{MethodName: "RejectBooking", Handler: unary("RejectBooking", (*AdminHandler).RejectBooking)},
		{MethodName: "DeleteBooking", Handler: unary("DeleteBooking", (*AdminHandler).DeleteBooking)},
		{MethodName: "SubmitInspection", Handler: unary("SubmitInspection", (*AdminHandler).SubmitInspection)},
		{MethodName: "RefundDeposit", Handler: unary("RefundDeposit", (*AdminHandler).RefundDeposit)},
		{MethodName: "AssessLateFee", Handler: unary("AssessLateFee", (*AdminHandler).AssessLateFee)},
		{MethodName: "GetBooking", Handler: unary("GetBooking", (*AdminHandler).GetBooking)},
		{MethodName: "InventorySnapshot", Handler: unary("InventorySnapshot", (*AdminHandler).InventorySnapshot)},
		{MethodName: "ListCalendar", Handler: unary("ListCalendar", (*AdminHandler).ListCalendar)},
		{MethodName: "ListPastBookings", Handler: unary("ListPastBookings", (*AdminHandler).ListPastBookings)},
		{MethodName: "RecordMaintenance", Handler: unary("RecordMaintenance", (*AdminHandler).RecordMaintenance)},
		{MethodName: "ListMaintenance", Handler: unary("ListMaintenance", (*AdminHandler).ListMaintenance)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gearbox/admin/v1/admin.proto",
}

// unary adapts a typed handler method to grpc.MethodHandler, running the
// server's interceptor chain and mapping domain errors to status codes.
func unary[Req proto.Message](method string, call func(*AdminHandler, context.Context, Req) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, icpt grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, icpt grpc.UnaryServerInterceptor) (interface{}, error) {
		var zero Req
		in := zero.ProtoReflect().New().Interface().(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := srv.(*AdminHandler)
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			out, err := call(h, ctx, req.(Req))
			if err != nil {
				return nil, toStatus(err)
			}
			return out, nil
		}
		if icpt == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return icpt(ctx, in, info, handler)
	}
}

func (h *AdminHandler) ConfirmBooking(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	b, err := h.bookings.Confirm(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"booking": b})
}

func (h *AdminHandler) ActivateBooking(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	b, err := h.bookings.Activate(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"booking": b})
}

func (h *AdminHandler) CompleteBooking(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	b, err := h.bookings.Complete(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"booking": b})
}

type archiveRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

func (h *AdminHandler) RejectBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in archiveRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	logger.WithActor(actor).Info("Reject requested", "bookingID", in.BookingID)
	pb, err := h.bookings.Reject(ctx, in.BookingID, actor, in.Reason)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"past_booking": pb})
}

func (h *AdminHandler) DeleteBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in archiveRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	logger.WithActor(actor).Info("Delete requested", "bookingID", in.BookingID)
	pb, err := h.bookings.Delete(ctx, in.BookingID, actor, in.Reason)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"past_booking": pb})
}

type inspectionRequest struct {
	BookingID string `json:"booking_id"`
	domain.InspectionInput
}

func (h *AdminHandler) SubmitInspection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in inspectionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	checklist, err := h.bookings.SubmitInspection(ctx, in.BookingID, actor, in.InspectionInput)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"inspection": checklist})
}

func (h *AdminHandler) RefundDeposit(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	b, err := h.bookings.RefundDeposit(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"booking": b})
}

type lateFeeRequest struct {
	BookingID  string `json:"booking_id"`
	ReturnedAt string `json:"returned_at"`
}

func (h *AdminHandler) AssessLateFee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in lateFeeRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	returnedAt, err := parseDate("returned_at", in.ReturnedAt)
	if err != nil {
		return nil, err
	}
	b, err := h.bookings.AssessLateFee(ctx, in.BookingID, returnedAt)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"booking": b})
}

func (h *AdminHandler) GetBooking(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	detail, err := h.bookings.GetBooking(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"booking": detail})
}

// InventorySnapshot takes the day as yyyy-mm-dd; empty means today.
func (h *AdminHandler) InventorySnapshot(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	date := time.Now()
	if req.GetValue() != "" {
		var err error
		if date, err = parseDate("date", req.GetValue()); err != nil {
			return nil, err
		}
	}
	snapshot, err := h.availability.InventorySnapshot(ctx, date)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"date": date.Format("2006-01-02"), "equipment": snapshot})
}

type calendarRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *AdminHandler) ListCalendar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in calendarRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	from, err := parseDate("from", in.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("to", in.To)
	if err != nil {
		return nil, err
	}
	entries, err := h.backOffice.ListCalendar(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"entries": entries})
}

type pastBookingsRequest struct {
	Query          string `json:"query"`
	Action         string `json:"action"`
	OriginalStatus string `json:"original_status"`
	Page           int    `json:"page"`
	Limit          int    `json:"limit"`
}

func (h *AdminHandler) ListPastBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in pastBookingsRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	filter := domain.PastBookingFilter{
		Query:          in.Query,
		Action:         domain.ArchiveAction(strings.ToLower(in.Action)),
		OriginalStatus: domain.BookingStatus(in.OriginalStatus),
		Page:           in.Page,
		Limit:          in.Limit,
	}
	list, total, err := h.backOffice.ListPastBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"past_bookings": list, "total": total})
}

type maintenanceRequest struct {
	EquipmentID string `json:"equipment_id"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	RepairedBy  string `json:"repaired_by"`
}

func (h *AdminHandler) RecordMaintenance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := GetActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in maintenanceRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.RepairedBy == "" {
		in.RepairedBy = actor
	}
	entry, err := h.backOffice.RecordMaintenance(ctx, in.EquipmentID, domain.EquipmentStatus(in.Status), in.Notes, in.RepairedBy)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"maintenance": entry})
}

func (h *AdminHandler) ListMaintenance(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	logs, err := h.backOffice.ListMaintenance(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"maintenance": logs})
}

// toStruct renders v through its JSON tags into a protobuf Struct.
func toStruct(v map[string]any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStruct decodes a Struct request into a tagged Go struct.
func fromStruct(s *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.NewValidationError("request", err.Error())
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := utils.ParseDate(value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, err.Error())
	}
	return t, nil
}

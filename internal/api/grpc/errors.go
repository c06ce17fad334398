package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
)

// toStatus maps domain failures onto gRPC codes so the back office can tell
// a retryable store outage from a business refusal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var oversold *domain.OversoldError
	switch {
	case errors.As(err, &oversold):
		return oversoldStatus(oversold)
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrOversold):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrAlreadyRefunded):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrArchivalFailure):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	logger.Error("Unmapped admin error", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// oversoldStatus attaches the per-equipment shortfalls as a Struct detail.
func oversoldStatus(e *domain.OversoldError) error {
	st := status.New(codes.ResourceExhausted, e.Error())
	shortfalls := make([]any, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		shortfalls = append(shortfalls, map[string]any{
			"equipment_id": s.EquipmentID,
			"capacity":     s.Capacity,
			"booked":       s.Booked,
			"requested":    s.Requested,
		})
	}
	detail, err := structpb.NewStruct(map[string]any{"booking_id": e.BookingID, "shortfalls": shortfalls})
	if err != nil {
		return st.Err()
	}
	if withDetail, err := st.WithDetails(detail); err == nil {
		return withDetail.Err()
	}
	return st.Err()
}

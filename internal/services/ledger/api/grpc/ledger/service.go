// Package ledger exposes the question ledger over gRPC.
package ledger

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/divination/internal/platform/errors"
	"github.com/louisbranch/divination/internal/platform/grpc/pagination"
	"github.com/louisbranch/divination/internal/platform/metrics"
	"github.com/louisbranch/divination/internal/platform/requestctx"
	"github.com/louisbranch/divination/internal/services/ledger/api/grpc/auth"
	grpcmeta "github.com/louisbranch/divination/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/domain/question"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// NotificationPageSize bounds how many journal events are read per page.
var NotificationPageSize = pagination.PageSizeConfig{Default: 100, Max: 500}

// Submitter records questions for a caller.
type Submitter interface {
	Submit(ctx context.Context, caller account.ID, content []byte, requestID string) (event.Event, error)
}

// Reader serves the read side of the ledger.
type Reader interface {
	Count(ctx context.Context) (uint64, error)
	Records(ctx context.Context, id account.ID) ([][]byte, error)
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Service implements LedgerServiceServer.
type Service struct {
	submitter Submitter
	reader    Reader
	metrics   *metrics.Metrics
}

var _ LedgerServiceServer = (*Service)(nil)

// NewService creates a ledger service. m may be nil.
func NewService(submitter Submitter, reader Reader, m *metrics.Metrics) *Service {
	return &Service{submitter: submitter, reader: reader, metrics: m}
}

// SubmitQuestion records the authenticated caller's question.
func (s *Service) SubmitQuestion(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	locale := requestctx.LocaleFromContext(ctx)
	if s == nil || s.submitter == nil {
		return nil, apperrors.GRPCStatus(errors.New("ledger submitter is not configured"), locale)
	}
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, apperrors.GRPCStatus(
			apperrors.New(apperrors.CodeUnauthenticated, "caller account is required"),
			locale,
		)
	}

	_, err := s.submitter.Submit(ctx, caller, in.GetValue(), requestctx.RequestIDFromContext(ctx))
	s.metrics.ObserveSubmission(submissionOutcome(err))
	if err != nil {
		return nil, apperrors.GRPCStatus(err, locale)
	}
	if s.reader != nil {
		if count, countErr := s.reader.Count(ctx); countErr == nil {
			s.metrics.SetLedgerCount(count)
		}
	}
	return &emptypb.Empty{}, nil
}

// GetCount returns the global question count.
func (s *Service) GetCount(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	reader, err := s.readerOrErr()
	if err != nil {
		return nil, apperrors.GRPCStatus(err, requestctx.LocaleFromContext(ctx))
	}
	count, err := reader.Count(ctx)
	if err != nil {
		return nil, apperrors.GRPCStatus(err, requestctx.LocaleFromContext(ctx))
	}
	return wrapperspb.UInt64(count), nil
}

// ListRecords streams an account's questions. An empty account lists the
// caller's own records.
func (s *Service) ListRecords(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	ctx := stream.Context()
	locale := requestctx.LocaleFromContext(ctx)
	reader, err := s.readerOrErr()
	if err != nil {
		return apperrors.GRPCStatus(err, locale)
	}
	target, err := recordsTarget(ctx, in.GetValue())
	if err != nil {
		return apperrors.GRPCStatus(err, locale)
	}

	records, err := reader.Records(ctx, target)
	if err != nil {
		return apperrors.GRPCStatus(err, locale)
	}
	for _, record := range records {
		if err := stream.Send(wrapperspb.Bytes(record)); err != nil {
			return err
		}
	}
	return nil
}

// ListNotifications streams journal events with sequence numbers greater
// than the requested one, paging through the store until it is drained.
func (s *Service) ListNotifications(in *wrapperspb.UInt64Value, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	locale := requestctx.LocaleFromContext(ctx)
	reader, err := s.readerOrErr()
	if err != nil {
		return apperrors.GRPCStatus(err, locale)
	}

	pageSize := pagination.ClampPageSize(grpcmeta.PageSizeFromContext(ctx), NotificationPageSize)
	after := in.GetValue()
	for {
		page, err := reader.ListEvents(ctx, after, pageSize)
		if err != nil {
			return apperrors.GRPCStatus(err, locale)
		}
		for _, evt := range page {
			msg, err := NotificationStruct(evt)
			if err != nil {
				return apperrors.GRPCStatus(err, locale)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
			after = evt.Seq
		}
		if pagination.IsLastPage(len(page), pageSize) {
			return nil
		}
	}
}

func (s *Service) readerOrErr() (Reader, error) {
	if s == nil || s.reader == nil {
		return nil, errors.New("ledger reader is not configured")
	}
	return s.reader, nil
}

func recordsTarget(ctx context.Context, requested string) (account.ID, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		caller, ok := auth.CallerFromContext(ctx)
		if !ok {
			return account.ID{}, apperrors.New(apperrors.CodeAccountRequired, "account is required")
		}
		return caller, nil
	}
	target, err := account.Parse(requested)
	if err != nil {
		return account.ID{}, apperrors.Wrap(apperrors.CodeAccountInvalid, "account is not valid", err)
	}
	return target, nil
}

func submissionOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAccepted
	case errors.Is(err, question.ErrQuestionTooShort):
		return metrics.OutcomeTooShort
	case errors.Is(err, question.ErrQuestionTooLong):
		return metrics.OutcomeTooLong
	default:
		return metrics.OutcomeError
	}
}

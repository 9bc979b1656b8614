package ledger

import (
	"context"
	"errors"
	"io"
	"strconv"

	apperrors "github.com/louisbranch/divination/internal/platform/errors"
	grpcmeta "github.com/louisbranch/divination/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the ledger service on behalf of one caller.
type Client struct {
	rpc LedgerServiceClient
	// Account is sent in the trusted account header when set.
	Account string
	// Token is sent as a bearer token when set.
	Token string
	// Locale selects the language of returned error messages.
	Locale string
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{rpc: NewLedgerServiceClient(cc)}
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	ctx = grpcmeta.WithOutgoingAccountID(ctx, c.Account)
	ctx = grpcmeta.WithOutgoingBearer(ctx, c.Token)
	return grpcmeta.WithOutgoingLocale(ctx, c.Locale)
}

// SubmitQuestion records content for the client's caller.
func (c *Client) SubmitQuestion(ctx context.Context, content []byte) error {
	_, err := c.rpc.SubmitQuestion(c.outgoing(ctx), wrapperspb.Bytes(content))
	return err
}

// Count returns the global question count.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	resp, err := c.rpc.GetCount(c.outgoing(ctx), &emptypb.Empty{})
	if err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}

// Records returns an account's questions; an empty id lists the caller's.
func (c *Client) Records(ctx context.Context, id string) ([][]byte, error) {
	stream, err := c.rpc.ListRecords(c.outgoing(ctx), wrapperspb.String(id))
	if err != nil {
		return nil, err
	}
	records := [][]byte{}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, msg.GetValue())
	}
}

// Notifications returns journal events after afterSeq. pageSize is a hint
// for the server's read batching; zero uses the server default.
func (c *Client) Notifications(ctx context.Context, afterSeq uint64, pageSize int) ([]event.Event, error) {
	ctx = c.outgoing(ctx)
	if pageSize > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcmeta.PageSizeHeader, strconv.Itoa(pageSize))
	}
	stream, err := c.rpc.ListNotifications(ctx, wrapperspb.UInt64(afterSeq))
	if err != nil {
		return nil, err
	}
	events := []event.Event{}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		evt, err := EventFromStruct(msg)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
}

// UserMessage returns the localized message carried by a ledger error, or
// the status message when none is attached.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	for _, detail := range st.Details() {
		if localized, ok := detail.(*errdetails.LocalizedMessage); ok && localized.GetMessage() != "" {
			return localized.GetMessage()
		}
	}
	return st.Message()
}

// ErrorCode returns the domain code carried by a ledger error.
func ErrorCode(err error) apperrors.Code {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return apperrors.CodeUnknown
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == apperrors.Domain {
			return apperrors.Code(info.GetReason())
		}
	}
	return apperrors.CodeUnknown
}

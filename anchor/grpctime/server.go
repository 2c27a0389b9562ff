package grpctime

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MatVerse-py/svca-lab-genesis/anchor"
)

// stampWire is the JSON shape a Fetch reply carries.
type stampWire struct {
	Unix      float64 `json:"unix"`
	ISO       string  `json:"iso"`
	Signature string  `json:"signature,omitempty"`
}

// Server exposes an anchor.TimeSource over the TimeAnchor gRPC service.
type Server struct {
	UnimplementedTimeAnchorServer
	Source anchor.TimeSource
}

func (s *Server) Fetch(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Source == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing time source")
	}
	source := in.GetValue()
	if source == "" {
		return nil, status.Error(codes.InvalidArgument, "empty source name")
	}

	st, err := s.Source.FetchTimestamp(ctx, source)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	b, err := json.Marshal(stampWire{Unix: st.Unix, ISO: st.ISO, Signature: st.Signature})
	if err != nil {
		return nil, status.Error(codes.Internal, "stamp encoding failed")
	}
	return wrapperspb.String(string(b)), nil
}

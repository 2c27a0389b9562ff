package grpctime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MatVerse-py/svca-lab-genesis/anchor"
)

// Client implements anchor.TimeSource over the TimeAnchor gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client TimeAnchorClient

	// Timeout applies per RPC when non-zero, on top of caller context.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewTimeAnchorClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// FetchTimestamp asks the remote daemon for a stamp from the named source.
func (c *Client) FetchTimestamp(ctx context.Context, source string) (anchor.Stamp, error) {
	if c == nil || c.client == nil {
		return anchor.Stamp{}, fmt.Errorf("grpctime: client not connected")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	reply, err := c.client.Fetch(ctx, wrapperspb.String(source))
	if err != nil {
		return anchor.Stamp{}, err
	}
	var w stampWire
	if err := json.Unmarshal([]byte(reply.GetValue()), &w); err != nil {
		return anchor.Stamp{}, fmt.Errorf("grpctime: malformed stamp: %w", err)
	}
	if w.Unix <= 0 || w.ISO == "" {
		return anchor.Stamp{}, fmt.Errorf("grpctime: incomplete stamp from %s", source)
	}
	return anchor.Stamp{Unix: w.Unix, ISO: w.ISO, Signature: w.Signature}, nil
}

var _ anchor.TimeSource = (*Client)(nil)

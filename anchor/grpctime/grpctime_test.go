package grpctime

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/MatVerse-py/svca-lab-genesis/anchor"
)

func dialBuf(t *testing.T, src anchor.TimeSource) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterTimeAnchorServer(srv, &Server{Source: src})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewTimeAnchorClient(cc), Timeout: 2 * time.Second}
}

func TestFetchTimestampRoundTrip(t *testing.T) {
	client := dialBuf(t, anchor.SystemClock{})

	before := float64(time.Now().UnixNano()) / 1e9
	st, err := client.FetchTimestamp(context.Background(), "network_time")
	if err != nil {
		t.Fatalf("FetchTimestamp: %v", err)
	}
	after := float64(time.Now().UnixNano()) / 1e9

	if st.Unix < before || st.Unix > after {
		t.Fatalf("stamp %v outside [%v, %v]", st.Unix, before, after)
	}
	if st.ISO == "" {
		t.Fatalf("missing ISO timestamp")
	}
}

func TestFetchLedgerStampCarriesSignature(t *testing.T) {
	client := dialBuf(t, anchor.SimulatedLedger{})

	st, err := client.FetchTimestamp(context.Background(), "ledger_sim")
	if err != nil {
		t.Fatalf("FetchTimestamp: %v", err)
	}
	if st.Signature == "" {
		t.Fatalf("ledger stamp missing signature")
	}
}

func TestFetchRejectsEmptySource(t *testing.T) {
	client := dialBuf(t, anchor.SystemClock{})
	if _, err := client.FetchTimestamp(context.Background(), ""); err == nil {
		t.Fatalf("empty source name accepted")
	}
}

func TestClientServesTripleAnchor(t *testing.T) {
	// The client satisfies anchor.TimeSource, so it can back the remote
	// anchors of a TripleAnchor directly.
	client := dialBuf(t, anchor.SystemClock{})

	ta := anchor.New(
		anchor.WithNetworkSource(client),
		anchor.WithLedgerSource(client),
		anchor.WithTimeout(2*time.Second),
	)
	if _, err := ta.CreateAll(context.Background()); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	for _, typ := range []anchor.Type{anchor.TypeNetwork, anchor.TypeLedger} {
		a, ok := ta.Get(typ)
		if !ok {
			t.Fatalf("missing %s anchor", typ)
		}
		if a.Degraded {
			t.Fatalf("%s anchor degraded over bufconn", typ)
		}
	}
}

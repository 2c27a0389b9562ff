// Command svca-anchord serves time anchors over gRPC, so finalization
// pipelines can fetch network and ledger stamps from a separate process.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/MatVerse-py/svca-lab-genesis/anchor"
	"github.com/MatVerse-py/svca-lab-genesis/anchor/grpctime"
)

func main() {
	fs := flag.NewFlagSet("svca-anchord", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7791", "listen address")
	source := fs.String("source", "system", "time source: system or ledger-sim")

	_ = fs.Parse(os.Args[1:])

	var src anchor.TimeSource
	switch *source {
	case "system":
		src = anchor.SystemClock{}
	case "ledger-sim":
		src = anchor.SimulatedLedger{}
	default:
		fmt.Fprintf(os.Stderr, "unknown time source %q\n", *source)
		os.Exit(2)
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpctime.RegisterTimeAnchorServer(s, &grpctime.Server{Source: src})

	fmt.Fprintf(os.Stderr, "svca-anchord listening on %s (source=%s)\n", lis.Addr().String(), *source)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

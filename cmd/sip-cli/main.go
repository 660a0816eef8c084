package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"sipbacktest/pkg/sipclient"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: sip-cli [flags] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version                          Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  compare <symbol> <monthly> [label=policy ...]\n")
	fmt.Fprintf(os.Stderr, "                                   Compare timing policies\n")
	fmt.Fprintf(os.Stderr, "  backtest <symbol> <monthly> <policy>\n")
	fmt.Fprintf(os.Stderr, "                                   Run a single policy\n")
	fmt.Fprintf(os.Stderr, "  bars <symbol>                    Print stored daily bars\n")
	fmt.Fprintf(os.Stderr, "  runs [symbol]                    List saved runs\n")
	fmt.Fprintf(os.Stderr, "  run <id>                         Show one saved run\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	server := flag.String("server", envOr("SIP_SERVER", "http://localhost:8080"), "sip-server HTTP base URL")
	grpcAddr := flag.String("grpc", "", "use the gRPC endpoint at this address for compare and backtest")
	market := flag.String("market", "", "market of the symbol (server default when empty)")
	start := flag.String("start", "", "first date of the window (YYYY-MM-DD)")
	end := flag.String("end", "", "last date of the window (YYYY-MM-DD)")
	save := flag.Bool("save", false, "record the comparison in the run history")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := sipclient.NewClient(*server)

	var (
		out any
		err error
	)
	switch args[0] {
	case "version":
		fmt.Printf("sip-cli %s\n", version)
		return

	case "compare":
		if len(args) < 3 {
			fatalUsage("compare needs <symbol> <monthly>")
		}
		req := sipclient.CompareRequest{
			Symbol:            args[1],
			Market:            *market,
			Start:             *start,
			End:               *end,
			MonthlyInvestment: mustFloat(args[2]),
			Save:              *save,
		}
		for _, kv := range args[3:] {
			label, policy, ok := strings.Cut(kv, "=")
			if !ok {
				fatalUsage("strategy %q is not label=policy", kv)
			}
			req.Strategies = append(req.Strategies, sipclient.StrategySpec{Label: label, Policy: policy})
		}
		if *grpcAddr != "" {
			out, err = withGRPC(*grpcAddr, func(gc *sipclient.GRPCClient) (any, error) { return gc.Compare(ctx, req) })
		} else {
			out, err = client.Compare(ctx, req)
		}

	case "backtest":
		if len(args) < 4 {
			fatalUsage("backtest needs <symbol> <monthly> <policy>")
		}
		req := sipclient.BacktestRequest{
			Symbol:            args[1],
			Market:            *market,
			Start:             *start,
			End:               *end,
			MonthlyInvestment: mustFloat(args[2]),
			Policy:            args[3],
		}
		if *grpcAddr != "" {
			out, err = withGRPC(*grpcAddr, func(gc *sipclient.GRPCClient) (any, error) { return gc.Backtest(ctx, req) })
		} else {
			out, err = client.Backtest(ctx, req)
		}

	case "bars":
		if len(args) < 2 {
			fatalUsage("bars needs <symbol>")
		}
		var s, e time.Time
		if s, err = parseOptDate(*start); err == nil {
			e, err = parseOptDate(*end)
		}
		if err == nil {
			out, err = client.GetBars(ctx, args[1], *market, s, e)
		}

	case "runs":
		symbol := ""
		if len(args) > 1 {
			symbol = args[1]
		}
		out, err = client.ListRuns(ctx, symbol, 0)

	case "run":
		if len(args) < 2 {
			fatalUsage("run needs <id>")
		}
		id, perr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil {
			fatalUsage("invalid run id %q", args[1])
		}
		out, err = client.GetRun(ctx, id)

	default:
		fatalUsage("unknown command: %s", args[0])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func withGRPC(addr string, call func(*sipclient.GRPCClient) (any, error)) (any, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()
	return call(sipclient.NewGRPCClient(conn))
}

func mustFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fatalUsage("invalid amount %q", s)
	}
	return v
}

func parseOptDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalUsage(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n\n", args...)
	usage()
	os.Exit(1)
}

// Command dnstap-receiver accepts a dnstap frame-stream session over a
// file, named pipe, TCP connection, or UNIX domain socket, and prints each
// decoded record to standard output.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/dnstap/go-dnswire"
	"github.com/dnstap/go-dnswire/dnstap"
	"github.com/dnstap/go-dnswire/internal/cliconfig"
)

const configDirName = "dnstap-receiver"

func main() {
	bi, _ := debug.ReadBuildInfo()
	path := cliconfig.ConfigFile(configDirName)

	cmd := &cli.Command{
		Name:    "dnstap-receiver",
		Usage:   "receive a dnstap frame-stream session and print each record",
		Version: versionOf(bi),
		Flags:   flags(path),
		Action:  run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func flags(path altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "address to accept a session on: unix:<path> or tcp:<host:port>",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DNSTAP_RECEIVER_LISTEN"),
				toml.TOML("receiver.listen", path),
			),
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: `input transport: "-" for stdin, unix:<path>, tcp:<host:port>, or a file path`,
			Value: "-",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DNSTAP_RECEIVER_INPUT"),
				toml.TOML("receiver.input", path),
			),
		},
		&cli.BoolFlag{
			Name:  "bidirectional",
			Usage: "accept the bi-directional READY/ACCEPT/FINISH handshake",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DNSTAP_RECEIVER_BIDIRECTIONAL"),
				toml.TOML("receiver.bidirectional", path),
			),
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "wait between retries on a non-blocking transport (0 = yield, negative = fail fast)",
			Value: 0,
		},
	}
}

func versionOf(bi *debug.BuildInfo) string {
	if bi == nil {
		return "devel"
	}
	return bi.Main.Version
}

func run(ctx context.Context, cmd *cli.Command) error {
	log := cliconfig.Logger(cmd.Bool("pretty-log"))

	var opts []dnswire.Option
	if cmd.Bool("bidirectional") {
		opts = append(opts, dnswire.WithBidirectional())
	}
	opts = append(opts, dnswire.WithRetryDelay(cmd.Duration("retry-delay")), dnswire.WithLogger(log))

	if listenAddr := cmd.String("listen"); listenAddr != "" {
		return serve(listenAddr, opts, log)
	}
	return receiveOnce(cmd.String("input"), opts, log)
}

func serve(addr string, opts []dnswire.Option, log dnswire.Logger) error {
	ln, err := cliconfig.Listen(addr)
	if err != nil {
		return fmt.Errorf("dnstap-receiver: %w", err)
	}
	defer ln.Close()

	log.Info().Str("addr", addr).Msg("listening for dnstap sessions")
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		go handleConn(conn, opts, log)
	}
}

func handleConn(conn net.Conn, opts []dnswire.Option, log dnswire.Logger) {
	defer conn.Close()
	if err := receive(conn, opts, log); err != nil {
		log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("session ended with error")
	}
}

func receiveOnce(addr string, opts []dnswire.Option, log dnswire.Logger) error {
	f, conn, err := cliconfig.Dial(addr)
	if err != nil {
		return fmt.Errorf("dnstap-receiver: %w", err)
	}
	if f != nil {
		defer f.Close()
		return receive(f, opts, log)
	}
	defer conn.Close()
	return receive(conn, opts, log)
}

type fdTransport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

func receive(fd fdTransport, opts []dnswire.Option, log dnswire.Logger) error {
	r := dnswire.NewReader(opts...)

	start := time.Now()
	count := 0
	for {
		res, err := r.Read(fd)
		switch res {
		case dnswire.ResultHaveRecord:
			count++
			printRecord(r.Record())
		case dnswire.ResultAgain:
			if err != nil {
				// ErrWouldBlock under a negative --retry-delay (fail
				// fast): the receiver stops and returns it as an error.
				return err
			}
		case dnswire.ResultEndOfData:
			log.Info().Int("records", count).Dur("elapsed", time.Since(start)).Msg("session finished")
			return nil
		case dnswire.ResultError:
			return fmt.Errorf("dnstap-receiver: %w", r.Err())
		}
	}
}

func printRecord(payload []byte) {
	rec, err := dnstap.Decode(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "malformed record: %v\n", err)
		return
	}
	if rec.Message == nil {
		fmt.Printf("dnstap: type=%d (no message)\n", rec.Type)
		return
	}
	m := rec.Message
	fmt.Printf("dnstap: %s proto=%s %s -> %s query_len=%d response_len=%d\n",
		m.Type, m.SocketProtocol, addrPort(m.QueryAddress, m.QueryPort), addrPort(m.ResponseAddress, m.ResponsePort),
		len(m.QueryMessage), len(m.ResponseMessage))
}

func addrPort(addr []byte, port uint32) string {
	if len(addr) == 0 {
		return "?"
	}
	return fmt.Sprintf("%s:%d", net.IP(addr).String(), port)
}

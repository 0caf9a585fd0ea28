// Command dnstap-sender opens a dnstap frame-stream session over a file,
// named pipe, TCP connection, or UNIX domain socket, and sends one record
// built from its flags.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime/debug"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/dnstap/go-dnswire"
	"github.com/dnstap/go-dnswire/dnstap"
	"github.com/dnstap/go-dnswire/internal/cliconfig"
)

const configDirName = "dnstap-sender"

func main() {
	bi, _ := debug.ReadBuildInfo()
	path := cliconfig.ConfigFile(configDirName)

	cmd := &cli.Command{
		Name:    "dnstap-sender",
		Usage:   "open a dnstap frame-stream session and send one record",
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
			Name:  "output",
			Usage: `output transport: "-" for stdout, unix:<path>, tcp:<host:port>, or a file path`,
			Value: "-",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DNSTAP_SENDER_OUTPUT"),
				toml.TOML("sender.output", path),
			),
		},
		&cli.BoolFlag{
			Name:  "bidirectional",
			Usage: "request the bi-directional READY/ACCEPT/FINISH handshake",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DNSTAP_SENDER_BIDIRECTIONAL"),
				toml.TOML("sender.bidirectional", path),
			),
		},
		&cli.StringFlag{
			Name:  "identity",
			Usage: "dnstap identity string stamped on the record",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DNSTAP_SENDER_IDENTITY"),
				toml.TOML("sender.identity", path),
			),
		},
		&cli.StringFlag{
			Name:  "message-type",
			Usage: "dnstap message type, e.g. CLIENT_QUERY",
			Value: "CLIENT_QUERY",
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
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
	opts = append(opts, dnswire.WithLogger(log))

	f, conn, err := cliconfig.Dial(cmd.String("output"))
	if err != nil {
		return fmt.Errorf("dnstap-sender: %w", err)
	}
	var fd fdTransport = f
	if f == os.Stdin {
		fd = os.Stdout
	}
	if conn != nil {
		fd = conn
	}
	defer closeTransport(f, conn)

	rec := &dnstap.Record{
		Type:     dnstap.TypeMessage,
		Identity: []byte(cmd.String("identity")),
		Message: &dnstap.Message{
			Type: messageType(cmd.String("message-type")),
		},
	}
	payload := dnstap.Encode(nil, rec)

	w := dnswire.NewWriter(opts...)
	if err := sendOne(w, fd, payload); err != nil {
		return fmt.Errorf("dnstap-sender: %w", err)
	}

	log.Info().Str("output", cmd.String("output")).Msg("session finished")
	return nil
}

// sendOne drives w through READY/ACCEPT (if bidirectional), START, a single
// record frame, STOP, and FINISH (if bidirectional), reading and writing fd
// directly. SetRecord and Stop are only legal once the encoder has reached
// the frames state, which it does at its own pace depending on the
// handshake; retrying them each time the encoder reports it made progress,
// rather than calling them once up front, is what lets this work for both
// the uni- and bi-directional profiles.
func sendOne(w *dnswire.Writer, fd fdTransport, payload []byte) error {
	out := make([]byte, dnswire.DefaultBufSize)
	in := make([]byte, dnswire.DefaultBufSize)

	var recordSet, stopped bool
	var pendingIn []byte

	for !w.Done() {
		res, n := w.Pop(out, pendingIn)
		pendingIn = nil
		if n > 0 {
			if _, err := fd.Write(out[:n]); err != nil {
				return err
			}
		}

		switch res {
		case dnswire.ResultError:
			return w.Err()
		case dnswire.ResultNeedMore:
			rn, err := fd.Read(in)
			if err != nil {
				return err
			}
			if rn == 0 {
				return dnswire.ErrTransport
			}
			pendingIn = in[:rn]
		case dnswire.ResultAgain:
			switch {
			case !recordSet:
				if err := w.SetRecord(payload); err == nil {
					recordSet = true
				}
			case !stopped:
				if err := w.Stop(); err == nil {
					stopped = true
				}
			}
		}
	}
	return nil
}

type fdTransport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

func closeTransport(f *os.File, conn net.Conn) {
	if f != nil {
		f.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

func messageType(s string) dnstap.MessageType {
	switch s {
	case "AUTH_QUERY":
		return dnstap.MessageTypeAuthQuery
	case "AUTH_RESPONSE":
		return dnstap.MessageTypeAuthResponse
	case "RESOLVER_QUERY":
		return dnstap.MessageTypeResolverQuery
	case "RESOLVER_RESPONSE":
		return dnstap.MessageTypeResolverResponse
	case "CLIENT_QUERY":
		return dnstap.MessageTypeClientQuery
	case "CLIENT_RESPONSE":
		return dnstap.MessageTypeClientResponse
	case "FORWARDER_QUERY":
		return dnstap.MessageTypeForwarderQuery
	case "FORWARDER_RESPONSE":
		return dnstap.MessageTypeForwarderResponse
	case "STUB_QUERY":
		return dnstap.MessageTypeStubQuery
	case "STUB_RESPONSE":
		return dnstap.MessageTypeStubResponse
	case "TOOL_QUERY":
		return dnstap.MessageTypeToolQuery
	case "TOOL_RESPONSE":
		return dnstap.MessageTypeToolResponse
	case "UPDATE_QUERY":
		return dnstap.MessageTypeUpdateQuery
	case "UPDATE_RESPONSE":
		return dnstap.MessageTypeUpdateResponse
	default:
		return dnstap.MessageTypeUnknown
	}
}

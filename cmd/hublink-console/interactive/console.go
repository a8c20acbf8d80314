// Package interactive provides the command loop of hublink-console.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/hublink/hublink-go/pkg/credential"
	"github.com/hublink/hublink-go/pkg/message"
	"github.com/hublink/hublink-go/pkg/receiver"
	"github.com/hublink/hublink-go/pkg/session"
)

// CommandTimeout bounds each command's wait on the session.
const CommandTimeout = 30 * time.Second

// Hub is the part of *session.Session the console drives.
type Hub interface {
	ID() string
	State() session.State
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Send(ctx context.Context, msg *message.Message, deviceID string) error
	FeedbackReceiver(ctx context.Context) (*receiver.Receiver, error)
	FileNotificationReceiver(ctx context.Context) (*receiver.Receiver, error)
	UpdateCredential(ctx context.Context, cred credential.Credential) error
}

// CredentialFunc builds a credential from a connection string, used by
// the credential command.
type CredentialFunc func(connectionString string) (credential.Credential, error)

// Console runs commands against a Hub.
type Console struct {
	hub     Hub
	newCred CredentialFunc
	out     io.Writer
	rl      *readline.Instance

	// listeners holds the cancel functions of running receiver loops.
	listeners map[string]context.CancelFunc
}

// New creates a Console with a readline prompt.
func New(hub Hub, newCred CredentialFunc) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hub> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := NewWithWriter(hub, newCred, rl.Stdout())
	c.rl = rl
	return c, nil
}

// NewWithWriter creates a Console without readline that writes to out.
// Commands are fed with Execute.
func NewWithWriter(hub Hub, newCred CredentialFunc, out io.Writer) *Console {
	return &Console{
		hub:       hub,
		newCred:   newCred,
		out:       out,
		listeners: make(map[string]context.CancelFunc),
	}
}

// Stdout returns a writer that coordinates with the readline prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.stopListeners()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Execute(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the console should
// exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "connect", "c":
		c.run(ctx, "connect", c.hub.Connect)
	case "disconnect", "d":
		c.run(ctx, "disconnect", c.hub.Disconnect)
	case "send", "s":
		c.cmdSend(ctx, args)
	case "feedback", "fb":
		c.cmdListen(ctx, "feedback", args, c.hub.FeedbackReceiver, c.printFeedback)
	case "files", "f":
		c.cmdListen(ctx, "files", args, c.hub.FileNotificationReceiver, c.printFileNotification)
	case "credential", "cred":
		c.cmdCredential(ctx, args)
	case "status":
		c.cmdStatus()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) run(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		fmt.Fprintf(c.out, "%s failed: %v\n", name, err)
		return
	}
	fmt.Fprintf(c.out, "%s: ok (state: %s)\n", name, c.hub.State())
}

// send <device-id> <body...>
func (c *Console) cmdSend(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: send <device-id> <body...>")
		return
	}
	msg := message.NewMessage([]byte(strings.Join(args[1:], " ")))
	msg.Ack = message.AckFull

	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()
	if err := c.hub.Send(ctx, msg, args[0]); err != nil {
		fmt.Fprintf(c.out, "send failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "sent %s to %s\n", msg.MessageID, args[0])
}

// feedback|files [stop]
func (c *Console) cmdListen(
	ctx context.Context,
	name string,
	args []string,
	get func(context.Context) (*receiver.Receiver, error),
	show func(*message.Message) error,
) {
	if len(args) > 0 && args[0] == "stop" {
		if stop, ok := c.listeners[name]; ok {
			stop()
			delete(c.listeners, name)
			fmt.Fprintf(c.out, "%s: stopped\n", name)
		} else {
			fmt.Fprintf(c.out, "%s: not listening\n", name)
		}
		return
	}
	if _, ok := c.listeners[name]; ok {
		fmt.Fprintf(c.out, "%s: already listening\n", name)
		return
	}

	getCtx, cancel := context.WithTimeout(ctx, CommandTimeout)
	r, err := get(getCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(c.out, "%s failed: %v\n", name, err)
		return
	}

	listenCtx, stop := context.WithCancel(ctx)
	c.listeners[name] = stop
	go func() {
		err := r.Listen(listenCtx, func(_ context.Context, msg *message.Message) error {
			return show(msg)
		})
		if err != nil {
			fmt.Fprintf(c.out, "%s: listener ended: %v\n", name, err)
		}
	}()
	fmt.Fprintf(c.out, "%s: listening on %s\n", name, r.Endpoint())
}

// credential <connection-string>
func (c *Console) cmdCredential(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: credential <connection-string>")
		return
	}
	cred, err := c.newCred(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "credential: %v\n", err)
		return
	}
	c.run(ctx, "credential", func(ctx context.Context) error {
		return c.hub.UpdateCredential(ctx, cred)
	})
}

func (c *Console) cmdStatus() {
	fmt.Fprintf(c.out, "session: %s\n", c.hub.ID())
	fmt.Fprintf(c.out, "state:   %s\n", c.hub.State())
	for _, name := range []string{"feedback", "files"} {
		if _, ok := c.listeners[name]; ok {
			fmt.Fprintf(c.out, "%s:  listening\n", name)
		}
	}
}

func (c *Console) printFeedback(msg *message.Message) error {
	records, err := receiver.DecodeFeedback(msg)
	if err != nil {
		fmt.Fprintf(c.out, "[feedback] undecodable batch %s: %v\n", msg.MessageID, err)
		return err
	}
	for _, r := range records {
		fmt.Fprintf(c.out, "[feedback] %s device=%s message=%s %s\n",
			r.StatusCode, r.DeviceID, r.OriginalMessageID, r.Description)
	}
	return nil
}

func (c *Console) printFileNotification(msg *message.Message) error {
	n, err := receiver.DecodeFileNotification(msg)
	if err != nil {
		fmt.Fprintf(c.out, "[files] undecodable notification %s: %v\n", msg.MessageID, err)
		return err
	}
	fmt.Fprintf(c.out, "[files] device=%s blob=%s size=%d\n", n.DeviceID, n.BlobName, n.BlobSizeInBytes)
	return nil
}

func (c *Console) stopListeners() {
	for name, stop := range c.listeners {
		stop()
		delete(c.listeners, name)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Hub Console Commands:
  Connection:
    connect                  - Connect and authenticate
    disconnect               - Tear down the connection
    credential <conn-str>    - Replace the credential (re-authenticates when connected)
    status                   - Show session state

  Messaging:
    send <device-id> <body>  - Send a cloud-to-device message
    feedback [stop]          - Print delivery feedback as it arrives
    files [stop]             - Print file upload notifications

  Other:
    help                     - Show this help
    quit                     - Exit`)
}

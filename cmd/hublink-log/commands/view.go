package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/hublink/hublink-go/pkg/log"
)

// RunView writes the selected events of the capture at path to output in
// human-readable form.
func RunView(path string, opts Options, output io.Writer) error {
	sel, err := opts.Parse()
	if err != nil {
		return err
	}
	reader, err := open(path, sel)
	if err != nil {
		return err
	}
	defer reader.Close()

	return each(reader, sel, func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] LAYER Type endpoint
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	header := fmt.Sprintf("%s [session:%s] %s %s", ts, shortenID(event.SessionID),
		event.Layer.String(), typeLabel(event))
	if event.Message != nil {
		header += " " + event.Direction.String()
	}
	if event.Endpoint != "" {
		header += " " + event.Endpoint
	}
	fmt.Fprintln(w, header)

	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Link != nil:
		formatLinkDetails(w, event.Link)
	case event.Auth != nil:
		formatAuthDetails(w, event.Auth)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.StateChange != nil:
		return "State"
	case event.Link != nil:
		return "Link " + event.Link.Action.String()
	case event.Auth != nil:
		return "Auth " + event.Auth.Trigger.String()
	case event.Message != nil:
		return "Message"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Epoch != 0 {
		fmt.Fprintf(w, "  Epoch: %d\n", sc.Epoch)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatLinkDetails(w io.Writer, le *log.LinkEvent) {
	if le.Err != "" {
		fmt.Fprintf(w, "  Error: %s\n", le.Err)
	}
}

func formatAuthDetails(w io.Writer, ae *log.AuthEvent) {
	if ae.Success {
		fmt.Fprintln(w, "  Result: accepted")
	} else {
		fmt.Fprintln(w, "  Result: rejected")
	}
	if ae.Expiry != nil {
		fmt.Fprintf(w, "  Expiry: %s\n", ae.Expiry.UTC().Format(time.RFC3339))
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.MessageID != "" {
		fmt.Fprintf(w, "  MessageID: %s\n", msg.MessageID)
	}
	if msg.To != "" {
		fmt.Fprintf(w, "  To: %s\n", msg.To)
	}
	fmt.Fprintf(w, "  Size: %d bytes\n", msg.Size)
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Kind != "" {
		fmt.Fprintf(w, "  Kind: %s\n", err.Kind)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

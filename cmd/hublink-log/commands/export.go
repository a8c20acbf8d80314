package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hublink/hublink-go/pkg/log"
)

// RunExport exports the selected events of the capture at path. An empty
// output writes to stdout.
func RunExport(path, format, output string, opts Options) error {
	sel, err := opts.Parse()
	if err != nil {
		return err
	}

	var write func(*log.Reader, Selection, io.Writer) error
	switch format {
	case "jsonl":
		write = exportJSONL
	case "csv":
		write = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := open(path, sel)
	if err != nil {
		return err
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return write(reader, sel, w)
}

func exportJSONL(reader *log.Reader, sel Selection, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return each(reader, sel, func(event log.Event) error {
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(reader *log.Reader, sel Selection, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "session_id", "direction", "layer", "category", "host", "endpoint", "type", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := each(reader, sel, func(event log.Event) error {
		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.SessionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Host,
			event.Endpoint,
			strings.ToLower(typeLabel(event)),
			detail(event),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// detail is the one-column summary of an event's payload.
func detail(event log.Event) string {
	switch {
	case event.StateChange != nil:
		return event.StateChange.OldState + "->" + event.StateChange.NewState
	case event.Link != nil:
		return event.Link.Err
	case event.Auth != nil:
		if event.Auth.Success {
			return "accepted"
		}
		return "rejected"
	case event.Message != nil:
		return event.Message.MessageID
	case event.Error != nil:
		return event.Error.Message
	}
	return ""
}

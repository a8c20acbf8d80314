package commands

import (
	"fmt"
	"io"

	"github.com/hublink/hublink-go/pkg/log"
)

// RunFilter copies the selected events of the capture at path into a new
// capture file at output and reports the count to w.
func RunFilter(path, output string, opts Options, w io.Writer) error {
	if output == "" {
		return fmt.Errorf("output file required")
	}
	if output == path {
		return fmt.Errorf("output must differ from input %s", path)
	}
	sel, err := opts.Parse()
	if err != nil {
		return err
	}
	reader, err := open(path, sel)
	if err != nil {
		return err
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	err = each(reader, sel, func(event log.Event) error {
		logger.Log(event)
		count++
		return nil
	})
	if closeErr := logger.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close output: %w", closeErr)
	}
	if err != nil {
		return err
	}
	if dropped := logger.Dropped(); dropped > 0 {
		return fmt.Errorf("%d events could not be written to %s", dropped, output)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}

// Package commands implements the hublink-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hublink/hublink-go/pkg/log"
)

// Options holds the selection flags shared by view, export and filter.
// Empty fields select every event.
type Options struct {
	SessionID string
	Endpoint  string
	Layer     string
	Category  string
	Direction string
	TimeStart string
	TimeEnd   string
}

// Selection is a parsed Options.
type Selection struct {
	Filter    log.Filter
	Direction *log.Direction
}

// Matches reports whether event is selected.
func (s *Selection) Matches(event log.Event) bool {
	if !s.Filter.Matches(event) {
		return false
	}
	return s.Direction == nil || event.Direction == *s.Direction
}

// Parse validates the options.
func (o Options) Parse() (Selection, error) {
	sel := Selection{Filter: log.Filter{
		SessionID: o.SessionID,
		Endpoint:  o.Endpoint,
	}}

	if o.Layer != "" {
		l, err := ParseLayer(o.Layer)
		if err != nil {
			return sel, err
		}
		sel.Filter.Layer = &l
	}
	if o.Category != "" {
		c, err := ParseCategory(o.Category)
		if err != nil {
			return sel, err
		}
		sel.Filter.Category = &c
	}
	if o.Direction != "" {
		d, err := ParseDirection(o.Direction)
		if err != nil {
			return sel, err
		}
		sel.Direction = &d
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return sel, fmt.Errorf("invalid time-start format: %w", err)
		}
		sel.Filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return sel, fmt.Errorf("invalid time-end format: %w", err)
		}
		sel.Filter.TimeEnd = &t
	}
	return sel, nil
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "link":
		return log.LayerLink, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, link, or session)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "link":
		return log.CategoryLink, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "auth":
		return log.CategoryAuth, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, link, state, error, or auth)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// open returns a reader over the selected events of the capture at path.
func open(path string, sel Selection) (*log.Reader, error) {
	reader, err := log.NewFilteredReader(path, sel.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return reader, nil
}

// each calls fn for every selected event.
func each(reader *log.Reader, sel Selection, fn func(log.Event) error) error {
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !sel.Matches(event) {
			continue
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

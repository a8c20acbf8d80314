package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hublink/hublink-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents      int
	EventsByLayer    map[log.Layer]int
	EventsByCategory map[log.Category]int
	Sessions         map[string]*SessionStats
	Errors           map[string]int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen    time.Time
	LastSeen     time.Time
	Events       int
	Host         string
	Connects     int
	Teardowns    int
	AuthAccepted int
	AuthRejected int
	Renewals     int
	MessagesIn   int
	MessagesOut  int
	BytesOut     int
	LinkFaults   int
}

// Collect reads every event from reader into a Stats.
func Collect(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:    make(map[log.Layer]int),
		EventsByCategory: make(map[log.Category]int),
		Sessions:         make(map[string]*SessionStats),
		Errors:           make(map[string]int),
	}
	err := each(reader, Selection{}, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if sess.Host == "" {
		sess.Host = event.Host
	}

	switch {
	case event.StateChange != nil:
		switch event.StateChange.NewState {
		case "CONNECTING":
			sess.Connects++
		case "DISCONNECTING":
			sess.Teardowns++
		}
	case event.Auth != nil:
		if event.Auth.Success {
			sess.AuthAccepted++
		} else {
			sess.AuthRejected++
		}
		if event.Auth.Trigger == log.AuthRenewal {
			sess.Renewals++
		}
	case event.Message != nil:
		if event.Direction == log.DirectionOut {
			sess.MessagesOut++
			sess.BytesOut += event.Message.Size
		} else {
			sess.MessagesIn++
		}
	case event.Link != nil:
		if event.Link.Action == log.LinkInvalidate {
			sess.LinkFaults++
		}
	case event.Error != nil:
		kind := event.Error.Kind
		if kind == "" {
			kind = "UNCLASSIFIED"
		}
		s.Errors[kind]++
	}
}

// RunStats analyzes the capture at path and prints statistics to w.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Hub Session Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerLink, log.LayerSession} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryLink, log.CategoryState, log.CategoryError, log.CategoryAuth} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			ss := s.stats
			duration := ss.LastSeen.Sub(ss.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(s.id), ss.Events, duration)
			if ss.Host != "" {
				fmt.Fprintf(w, "           Host: %s\n", ss.Host)
			}
			fmt.Fprintf(w, "           Connects: %d  Teardowns: %d\n", ss.Connects, ss.Teardowns)
			fmt.Fprintf(w, "           Auth: %d accepted, %d rejected (%d renewals)\n",
				ss.AuthAccepted, ss.AuthRejected, ss.Renewals)
			if ss.MessagesIn+ss.MessagesOut > 0 {
				fmt.Fprintf(w, "           Messages: %d out (%d bytes), %d in\n",
					ss.MessagesOut, ss.BytesOut, ss.MessagesIn)
			}
			if ss.LinkFaults > 0 {
				fmt.Fprintf(w, "           Link faults: %d\n", ss.LinkFaults)
			}
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors by Kind:")
		kinds := make([]string, 0, len(stats.Errors))
		for k := range stats.Errors {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-20s %d\n", k+":", stats.Errors[k])
		}
	}
}

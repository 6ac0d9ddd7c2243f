package device

import (
	"context"
	"sort"
	"time"
)

// EventType classifies a device change.
type EventType int

const (
	Connected EventType = iota
	Disconnected
	StateChanged
)

func (t EventType) String() string {
	switch t {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case StateChanged:
		return "changed"
	}
	return "unknown"
}

// Event reports a change in the set of devices adb sees.
type Event struct {
	Type  EventType
	Entry Entry
}

// DefaultPollInterval is how often a Session polls adb.
const DefaultPollInterval = 500 * time.Millisecond

// Session tracks attached devices by polling `adb devices`. Changes are
// delivered on a per-watch channel; the session holds no global state.
type Session struct {
	adbPath  string
	interval time.Duration
	list     func(ctx context.Context) ([]Entry, error)
}

// NewSession creates a session using the given adb binary.
func NewSession(adbPath string) *Session {
	s := &Session{adbPath: adbPath, interval: DefaultPollInterval}
	s.list = func(ctx context.Context) ([]Entry, error) {
		return listDevices(ctx, execRunner, s.adbPath)
	}
	return s
}

// Watch polls until ctx is done, emitting an event for every device that
// appears, disappears or changes state. Devices present at the first poll
// are reported as Connected. The channel is closed when ctx is done.
func (s *Session) Watch(ctx context.Context) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)

		known := map[string]string{}
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			entries, err := s.list(ctx)
			if err != nil {
				log.Debug("poll devices: %v", err)
			} else {
				for _, ev := range diff(known, entries) {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}

// diff updates known to entries and returns the changes in serial order.
func diff(known map[string]string, entries []Entry) []Event {
	var events []Event
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.Serial] = true
		prev, ok := known[e.Serial]
		switch {
		case !ok:
			events = append(events, Event{Type: Connected, Entry: e})
		case prev != e.State:
			events = append(events, Event{Type: StateChanged, Entry: e})
		}
		known[e.Serial] = e.State
	}
	for serial, state := range known {
		if !seen[serial] {
			events = append(events, Event{Type: Disconnected, Entry: Entry{Serial: serial, State: state}})
			delete(known, serial)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Entry.Serial < events[j].Entry.Serial })
	return events
}

// AwaitDevice blocks until a device is online and returns its serial. An
// empty serial accepts any device.
func (s *Session) AwaitDevice(ctx context.Context, serial string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	waiting := false
	for ev := range s.Watch(ctx) {
		if ev.Type == Disconnected || !ev.Entry.Online() {
			continue
		}
		if serial == "" || ev.Entry.Serial == serial {
			return ev.Entry.Serial, nil
		}
		if !waiting {
			log.Info("waiting for device %s", serial)
			waiting = true
		}
	}
	return "", ctx.Err()
}

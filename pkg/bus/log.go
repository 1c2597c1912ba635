package bus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

var (
	ErrDuplicateEventID = errors.New("duplicate event id")
	ErrUnknownParent    = errors.New("parent event is not in the log")
)

type LogOption func(*Log)

// WithClock replaces the wall clock used to stamp events, tests use it for reproducible timestamps.
func WithClock(clock func() time.Time) LogOption {
	return func(l *Log) {
		l.clock = clock
	}
}

// Log is the append-only, causally ordered event history of one backtest run.
// Events live in an arena and are addressed by id; nothing is ever mutated or removed.
type Log struct {
	clock func() time.Time

	events    []Event
	index     map[string]int
	sequences map[int64]map[string]int
	hashes    map[string]string

	currentTick int64
}

func NewLog(options ...LogOption) *Log {
	l := &Log{
		clock:     time.Now,
		index:     make(map[string]int),
		sequences: make(map[int64]map[string]int),
		hashes:    make(map[string]string),
	}

	for _, option := range options {
		option(l)
	}

	return l
}

func (l *Log) CurrentTick() int64 {
	return l.currentTick
}

func (l *Log) AdvanceTick() int64 {
	l.currentTick++
	return l.currentTick
}

func (l *Log) SetTick(tick int64) {
	l.currentTick = tick
}

// Append stamps a new event with the current tick and a sequence scoped to (tick, type hash).
// A non-empty parentID must reference an event already in the log.
func (l *Log) Append(eventType string, data any, parentID string) (Event, error) {
	if parentID != "" {
		if _, ok := l.index[parentID]; !ok {
			return Event{}, fmt.Errorf("%w: %s", ErrUnknownParent, parentID)
		}
	}

	hash, ok := l.hashes[eventType]
	if !ok {
		hash = TypeHash(eventType)
		l.hashes[eventType] = hash
	}

	perTick, ok := l.sequences[l.currentTick]
	if !ok {
		perTick = make(map[string]int)
		l.sequences[l.currentTick] = perTick
	}
	perTick[hash]++

	event := Event{
		Tick:      l.currentTick,
		Timestamp: l.clock().UTC(),
		Type:      eventType,
		Data:      data,
		ID:        formatID(l.currentTick, hash, perTick[hash]),
		ParentID:  parentID,
	}

	if err := l.insert(event); err != nil {
		return Event{}, err
	}
	return event, nil
}

func (l *Log) insert(event Event) error {
	if _, ok := l.index[event.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEventID, event.ID)
	}
	l.index[event.ID] = len(l.events)
	l.events = append(l.events, event)
	return nil
}

func (l *Log) Len() int {
	return len(l.events)
}

// Events returns a copy of the history in append order.
func (l *Log) Events() []Event {
	events := make([]Event, len(l.events))
	copy(events, l.events)
	return events
}

func (l *Log) At(tick int64) []Event {
	var events []Event
	for _, event := range l.events {
		if event.Tick == tick {
			events = append(events, event)
		}
	}
	return events
}

func (l *Log) ByID(id string) (Event, bool) {
	idx, ok := l.index[id]
	if !ok {
		return Event{}, false
	}
	return l.events[idx], true
}

func (l *Log) MaxTick() int64 {
	var maxTick int64
	for _, event := range l.events {
		if event.Tick > maxTick {
			maxTick = event.Tick
		}
	}
	return maxTick
}

// Children returns the direct descendants of id in append order.
func (l *Log) Children(id string) []Event {
	var children []Event
	for _, event := range l.events {
		if event.ParentID == id {
			children = append(children, event)
		}
	}
	return children
}

// Cascade returns the root event and every event whose parent chain includes it,
// sorted by (tick, type hash, sequence). Unknown roots yield nil.
func (l *Log) Cascade(rootID string) []Event {
	rootIdx, ok := l.index[rootID]
	if !ok {
		return nil
	}

	children := make(map[string][]int)
	for idx, event := range l.events {
		if event.ParentID != "" {
			children[event.ParentID] = append(children[event.ParentID], idx)
		}
	}

	visited := map[int]struct{}{rootIdx: {}}
	queue := []int{rootIdx}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		for _, child := range children[l.events[idx].ID] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			queue = append(queue, child)
		}
	}

	members := make([]int, 0, len(visited))
	for idx := range visited {
		members = append(members, idx)
	}
	sort.Slice(members, func(i, j int) bool {
		return l.less(members[i], members[j])
	})

	cascade := make([]Event, len(members))
	for i, idx := range members {
		cascade[i] = l.events[idx]
	}
	return cascade
}

func (l *Log) less(i, j int) bool {
	a, b := l.events[i], l.events[j]
	if a.Tick != b.Tick {
		return a.Tick < b.Tick
	}
	_, hashA, seqA, okA := parseID(a.ID)
	_, hashB, seqB, okB := parseID(b.ID)
	if okA && okB {
		if hashA != hashB {
			return hashA < hashB
		}
		if seqA != seqB {
			return seqA < seqB
		}
	}
	return i < j
}

type record struct {
	Tick      int64           `json:"tick"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"event_id"`
	ParentID  *string         `json:"parent_id"`
}

// Save writes one JSON encoded event per line.
func (l *Log) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, event := range l.events {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("unable to marshal data of event %s: %w", event.ID, err)
		}
		rec := record{
			Tick:      event.Tick,
			Timestamp: event.Timestamp,
			Type:      event.Type,
			Data:      data,
			ID:        event.ID,
		}
		if event.ParentID != "" {
			parentID := event.ParentID
			rec.ParentID = &parentID
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("unable to write event %s: %w", event.ID, err)
		}
	}
	return bw.Flush()
}

func (l *Log) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create event log %q: %w", path, err)
	}
	if err := l.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load rebuilds a log from lines written by Save. Event data is kept as json.RawMessage
// and the current tick is set to the highest tick found.
func Load(r io.Reader, options ...LogOption) (*Log, error) {
	l := NewLog(options...)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		event := Event{
			Tick:      rec.Tick,
			Timestamp: rec.Timestamp,
			Type:      rec.Type,
			Data:      rec.Data,
			ID:        rec.ID,
		}
		if rec.ParentID != nil {
			event.ParentID = *rec.ParentID
		}

		if err := l.insert(event); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		l.restoreSequence(event)
		if event.Tick > l.currentTick {
			l.currentTick = event.Tick
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read event log: %w", err)
	}

	return l, nil
}

func LoadFile(path string, options ...LogOption) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open event log %q: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Load(f, options...)
}

// restoreSequence keeps counters in step with loaded ids so appends after a reload never collide.
func (l *Log) restoreSequence(event Event) {
	tick, hash, sequence, ok := parseID(event.ID)
	if !ok {
		return
	}
	perTick, ok := l.sequences[tick]
	if !ok {
		perTick = make(map[string]int)
		l.sequences[tick] = perTick
	}
	if sequence > perTick[hash] {
		perTick[hash] = sequence
	}
}

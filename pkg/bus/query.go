package bus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var ErrEventNotFound = errors.New("event not found")

// Query searches and renders a Log for humans, grouping events per tick and nesting same-tick
// children under their parent.
type Query struct {
	log *Log
}

func NewQuery(log *Log) *Query {
	return &Query{log: log}
}

// ByType returns the events of eventType in log order.
func (q *Query) ByType(eventType string) []Event {
	var events []Event
	for _, event := range q.log.events {
		if event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}

// ByData returns the events whose data is an object holding key with a value equal to value.
// Values compare by their JSON encoding, so the same matches hold before and after a reload.
func (q *Query) ByData(key string, value any) ([]Event, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s value: %w", key, err)
	}

	var events []Event
	for _, event := range q.log.events {
		fields, ok := dataFields(event.Data)
		if !ok {
			continue
		}
		field, ok := fields[key]
		if !ok {
			continue
		}
		if bytes.Equal(compact(field), compact(want)) {
			events = append(events, event)
		}
	}
	return events, nil
}

func (q *Query) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, event := range q.log.events {
		counts[event.Type]++
	}
	return counts
}

// PrintEventDetails prints one event with its cross-tick cause, if any.
func (q *Query) PrintEventDetails(w io.Writer, event Event, showData bool) error {
	p := &printer{w: w}
	_, suffix := q.marker(event)
	p.line(fmt.Sprintf("● %s%s", event.Type, suffix))
	p.line(fmt.Sprintf("  ID: %s", event.ID))
	if showData {
		printData(p, "  ", event.Data)
	}
	return p.err
}

// PrintSingleCascade prints the tree rooted at rootID, descending into later ticks as well.
func (q *Query) PrintSingleCascade(w io.Writer, rootID string, showData bool) error {
	root, ok := q.log.ByID(rootID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, rootID)
	}

	p := &printer{w: w}
	tree := &cascadeTree{children: q.children(), crossTick: true}
	q.printEvent(p, root, tree, 0, showData)
	return p.err
}

func (q *Query) PrintCascade(w io.Writer, showData bool) error {
	p := &printer{w: w}
	tree := &cascadeTree{children: q.children()}
	p.line("===== EVENT CASCADE VIEWER =====")

	byTick := make(map[int64][]Event)
	var ticks []int64
	for _, event := range q.log.events {
		if _, ok := byTick[event.Tick]; !ok {
			ticks = append(ticks, event.Tick)
		}
		byTick[event.Tick] = append(byTick[event.Tick], event)
	}
	if len(ticks) == 0 {
		p.line("")
		p.line("<No events in log>")
		return p.err
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	for _, tick := range ticks {
		q.printTick(p, tick, byTick[tick], tree, showData)
	}
	return p.err
}

func (q *Query) printTick(p *printer, tick int64, events []Event, tree *cascadeTree, showData bool) {
	header := fmt.Sprintf("┌─── TICK %d ───┐", tick)
	p.line("")
	p.line(header)

	for _, event := range events {
		if parent, ok := q.log.ByID(event.ParentID); ok && parent.Tick == tick {
			continue
		}
		q.printEvent(p, event, tree, 1, showData)
	}

	p.line("└" + strings.Repeat("─", len([]rune(header))-2) + "┘")
}

// cascadeTree indexes children by parent id. Without crossTick only same-tick children are
// descended into and later ones are summarized.
type cascadeTree struct {
	children  map[string][]Event
	crossTick bool
}

// children builds the parent to children index in one pass over the log.
func (q *Query) children() map[string][]Event {
	children := make(map[string][]Event)
	for _, event := range q.log.events {
		if event.ParentID != "" {
			children[event.ParentID] = append(children[event.ParentID], event)
		}
	}
	return children
}

func (q *Query) marker(event Event) (string, string) {
	if !event.HasParent() {
		return "●", ""
	}
	if parent, ok := q.log.ByID(event.ParentID); ok && parent.Tick < event.Tick {
		return "↓", fmt.Sprintf(" (caused by: %s @ tick %d)", parent.Type, parent.Tick)
	}
	return "└─", ""
}

func (q *Query) printEvent(p *printer, event Event, tree *cascadeTree, depth int, showData bool) {
	indent := strings.Repeat("  ", depth)

	marker, suffix := q.marker(event)
	p.line(fmt.Sprintf("%s%s %s [%s]%s", indent, marker, event.Type, event.ID, suffix))

	if showData {
		printData(p, indent+"  ", event.Data)
	}

	var next []Event
	future := 0
	for _, child := range tree.children[event.ID] {
		if tree.crossTick || child.Tick == event.Tick {
			next = append(next, child)
		} else if child.Tick > event.Tick {
			future++
		}
	}
	if future > 0 {
		p.line(fmt.Sprintf("%s  ↓ triggers %d event(s) in future ticks", indent, future))
	}

	for _, child := range next {
		q.printEvent(p, child, tree, depth+1, showData)
	}
}

func printData(p *printer, indent string, data any) {
	if raw, ok := data.(json.RawMessage); data == nil || ok && bytes.Equal(raw, []byte("null")) {
		return
	}
	if encoded, err := json.Marshal(data); err == nil {
		p.line(fmt.Sprintf("%sdata: %s", indent, encoded))
	}
}

// dataFields decodes event data into its top-level object fields.
func dataFields(data any) (map[string]json.RawMessage, bool) {
	if data == nil {
		return nil, false
	}
	raw, ok := data.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return nil, false
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func compact(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

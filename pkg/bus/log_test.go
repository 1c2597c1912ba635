package bus

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
}

func TestLog_TypeHash(t *testing.T) {
	hash := TypeHash("order.filled")
	assert.Len(t, hash, 4)
	assert.Equal(t, strings.ToUpper(hash), hash)
	assert.Equal(t, hash, TypeHash("order.filled"))
	assert.NotEqual(t, hash, TypeHash("order.new"))
}

func TestLog_IDsAreScopedPerTickAndType(t *testing.T) {
	l := NewLog(WithClock(fixedClock()))

	a1, err := l.Append("a", nil, "")
	require.NoError(t, err)
	a2, _ := l.Append("a", nil, "")
	b1, _ := l.Append("b", nil, "")

	l.AdvanceTick()
	a3, _ := l.Append("a", nil, "")

	assert.Equal(t, formatID(0, TypeHash("a"), 1), a1.ID)
	assert.Equal(t, formatID(0, TypeHash("a"), 2), a2.ID)
	assert.Equal(t, formatID(0, TypeHash("b"), 1), b1.ID)
	assert.Equal(t, formatID(1, TypeHash("a"), 1), a3.ID)
	assert.Equal(t, int64(1), a3.Tick)
}

func TestLog_IndependentInstances(t *testing.T) {
	l1 := NewLog()
	l2 := NewLog()

	e1, _ := l1.Append("a", nil, "")
	e2, _ := l2.Append("a", nil, "")

	assert.Equal(t, e1.ID, e2.ID, "sequence counters must be owned by each log")
}

func TestLog_Queries(t *testing.T) {
	l := NewLog()

	root, _ := l.Append("root", nil, "")
	l.AdvanceTick()
	child, _ := l.Append("child", nil, root.ID)

	got, ok := l.ByID(child.ID)
	require.True(t, ok)
	assert.Equal(t, root.ID, got.ParentID)

	_, ok = l.ByID("missing")
	assert.False(t, ok)

	assert.Len(t, l.At(0), 1)
	assert.Len(t, l.At(1), 1)
	assert.Empty(t, l.At(2))
	assert.Equal(t, int64(1), l.MaxTick())
	assert.Equal(t, []Event{child}, l.Children(root.ID))
}

func TestLog_Cascade(t *testing.T) {
	l := NewLog()

	root, _ := l.Append("order.filled", nil, "")
	unrelated, _ := l.Append("price.tick", nil, "")
	position, _ := l.Append("position.updated", nil, root.ID)
	l.AdvanceTick()
	grandchild, _ := l.Append("account.pnl", nil, position.ID)
	sibling, _ := l.Append("order.new", nil, root.ID)

	cascade := l.Cascade(root.ID)
	ids := make([]string, 0, len(cascade))
	for _, e := range cascade {
		ids = append(ids, e.ID)
	}

	assert.NotContains(t, ids, unrelated.ID)
	assert.ElementsMatch(t, []string{root.ID, position.ID, grandchild.ID, sibling.ID}, ids)

	for i := 1; i < len(cascade); i++ {
		prev, cur := cascade[i-1], cascade[i]
		require.LessOrEqual(t, prev.Tick, cur.Tick)
		if prev.Tick == cur.Tick {
			_, hp, sp, _ := parseID(prev.ID)
			_, hc, sc, _ := parseID(cur.ID)
			assert.True(t, hp < hc || (hp == hc && sp < sc), "cascade must be ordered by (tick, hash, sequence)")
		}
	}

	assert.Nil(t, l.Cascade("missing"))
	assert.Len(t, l.Cascade(unrelated.ID), 1)
}

func TestLog_SaveLoadRoundTrip(t *testing.T) {
	l := NewLog(WithClock(fixedClock()))

	root, _ := l.Append("order.new", map[string]any{"id": "abc", "quantity": 1.5}, "")
	l.AdvanceTick()
	filled, _ := l.Append("order.filled", map[string]any{"id": "abc"}, root.ID)
	l.AdvanceTick()
	l.AdvanceTick()
	_, _ = l.Append("position.updated", []int{1, 2}, filled.ID)

	var first bytes.Buffer
	require.NoError(t, l.Save(&first))
	assert.Equal(t, 3, strings.Count(first.String(), "\n"))

	loaded, err := Load(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, l.MaxTick(), loaded.MaxTick())
	assert.Equal(t, int64(3), loaded.CurrentTick())
	require.Equal(t, l.Len(), loaded.Len())

	original := l.Events()
	for i, e := range loaded.Events() {
		assert.Equal(t, original[i].ID, e.ID)
		assert.Equal(t, original[i].ParentID, e.ParentID)
		assert.Equal(t, original[i].Tick, e.Tick)
		assert.Equal(t, original[i].Type, e.Type)
		assert.True(t, original[i].Timestamp.Equal(e.Timestamp))
	}

	var second bytes.Buffer
	require.NoError(t, loaded.Save(&second))
	assert.Equal(t, first.String(), second.String())

	next, err := loaded.Append("position.updated", nil, "")
	require.NoError(t, err)
	assert.Equal(t, formatID(3, TypeHash("position.updated"), 2), next.ID, "appends after reload must not collide")
}

func TestLog_LoadRejectsGarbage(t *testing.T) {
	_, err := Load(strings.NewReader("{not json}\n"))
	assert.Error(t, err)

	line := `{"tick":0,"timestamp":"2024-01-01T00:00:00Z","type":"a","data":null,"event_id":"0-AAAA-1","parent_id":null}`
	_, err = Load(strings.NewReader(line + "\n\n" + line + "\n"))
	assert.ErrorIs(t, err, ErrDuplicateEventID)
}

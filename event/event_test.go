package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/monitor/errors"
)

func TestNewStampsAndAppliesOptions(t *testing.T) {
	before := time.Now().UnixMilli()
	e := New("user.created", map[string]any{"id": 1}, WithMetadata("subject", "alice"))

	assert.Equal(t, "user.created", e.Type)
	assert.GreaterOrEqual(t, e.Timestamp, before)
	assert.Equal(t, "alice", e.MetaString("subject"))
	assert.NoError(t, e.Validate())
}

func TestNewWithTimestamp(t *testing.T) {
	e := New("x", 1, WithTimestamp(42))
	assert.Equal(t, int64(42), e.Timestamp)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		field string
	}{
		{"missing type", Event{Payload: 1, Timestamp: 1}, "type"},
		{"missing payload", Event{Type: "x", Timestamp: 1}, "payload"},
		{"missing timestamp", Event{Type: "x", Payload: 1, Timestamp: -1}, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedEvent)
			assert.Equal(t, tt.field, apperrors.FromError(err).Details["field"])
		})
	}
}

func TestValidateAcceptsZeroValues(t *testing.T) {
	assert.NoError(t, Event{Type: "x", Payload: 0, Timestamp: 0}.Validate())
	assert.NoError(t, Event{Type: "x", Payload: "", Timestamp: 0}.Validate())
}

func TestWithMetaCopies(t *testing.T) {
	orig := Event{Type: "x", Payload: 1, Metadata: map[string]any{"a": 1}}
	next := orig.WithMeta("origin", "node-1")

	assert.Equal(t, "node-1", next.MetaString("origin"))
	_, ok := orig.Meta("origin")
	assert.False(t, ok)
}

func TestStamperIsMonotonic(t *testing.T) {
	clock := []time.Time{
		time.UnixMilli(1000),
		time.UnixMilli(900),
		time.UnixMilli(1100),
	}
	i := 0
	s := NewStamper(func() time.Time {
		tm := clock[i]
		i++
		return tm
	})

	assert.Equal(t, int64(1000), s.Stamp())
	assert.Equal(t, int64(1000), s.Stamp())
	assert.Equal(t, int64(1100), s.Stamp())
}

func TestWithStamper(t *testing.T) {
	s := NewStamper(func() time.Time { return time.UnixMilli(7) })
	e := New("x", 1, WithStamper(s))
	assert.Equal(t, int64(7), e.Timestamp)
}

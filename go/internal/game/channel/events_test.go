package channel

import (
	"testing"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"Notice","message":{"notice_id":4,"notice_category":"FirstBlood","data":["pwners","baby-rop"],"create_time":"2026-03-01T10:00:00Z"}}`))
	require.NoError(t, err)

	notice, ok := event.(NoticeEvent)
	require.True(t, ok)
	assert.Equal(t, int64(4), notice.Notice.ID)
	assert.Equal(t, models.NoticeFirstBlood, notice.Notice.Category)
	assert.Equal(t, []string{"pwners", "baby-rop"}, notice.Notice.Data)
}

func TestParseEventUnknownType(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"Heartbeat","message":{}}`))
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestParseEventMalformed(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"type":"Notice","message":{"notice_category":"Bogus","data":[]}}`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"type":"Notice","message":"nope"}`))
	assert.Error(t, err)
}

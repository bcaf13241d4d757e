package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelephoneEventRoundTrip(t *testing.T) {
	e := TelephoneEvent{Event: DTMFDigit5, End: true, Volume: -10, Duration: 800}
	buf, err := e.Marshal(nil)
	assert.NoError(t, err)
	assert.Len(t, buf, telephoneEventSize)

	got, err := UnmarshalTelephoneEvent(buf)
	assert.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestTelephoneEventVolumeClamped(t *testing.T) {
	e := TelephoneEvent{Event: DTMFPound, Volume: -200}
	buf, err := e.Marshal(nil)
	assert.NoError(t, err)

	got, err := UnmarshalTelephoneEvent(buf)
	assert.NoError(t, err)
	assert.Equal(t, -63, got.Volume)
}

func TestTelephoneEventVolumePositiveClampedToZero(t *testing.T) {
	e := TelephoneEvent{Event: DTMFPound, Volume: 10}
	buf, err := e.Marshal(nil)
	assert.NoError(t, err)

	got, err := UnmarshalTelephoneEvent(buf)
	assert.NoError(t, err)
	assert.Equal(t, 0, got.Volume)
}

package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawBody(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	raw := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestParseSessionPatch_Volume(t *testing.T) {
	for _, body := range []string{`{"white_noise_volume": 50}`, `{"white_noise_volume": "50"}`, `{"white_noise_volume": " 50 "}`} {
		p, err := ParseSessionPatch(rawBody(t, body))
		require.NoError(t, err, body)
		require.True(t, p.WhiteNoiseVolume.Set)
		assert.Equal(t, 50, *p.WhiteNoiseVolume.Value)
	}

	for _, body := range []string{
		`{"white_noise_volume": null}`,
		`{"white_noise_volume": 101}`,
		`{"white_noise_volume": -1}`,
		`{"white_noise_volume": 50.5}`,
		`{"white_noise_volume": "loud"}`,
		`{"white_noise_volume": true}`,
		`{"white_noise_volume": 18446744073709551666}`,
		`{"white_noise_volume": -18446744073709551566}`,
		`{"white_noise_volume": "18446744073709551666"}`,
		`{"white_noise_volume": 1e20}`,
	} {
		_, err := ParseSessionPatch(rawBody(t, body))
		assert.ErrorIs(t, err, ErrInvalidVolume, body)
	}
}

func TestParseSessionPatch_Text(t *testing.T) {
	p, err := ParseSessionPatch(rawBody(t, `{"mood": "calm", "memo": null, "other": 1}`))
	require.NoError(t, err)
	assert.True(t, p.Mood.Set)
	assert.Equal(t, "calm", *p.Mood.Value)
	assert.True(t, p.Memo.Set)
	assert.Nil(t, p.Memo.Value)
	assert.False(t, p.WhiteNoiseType.Set)
	assert.False(t, p.WhiteNoiseVolume.Set)

	_, err = ParseSessionPatch(rawBody(t, `{"mood": "`+strings.Repeat("z", 21)+`"}`))
	require.ErrorIs(t, err, ErrInvalidSettings)
	var settingsErr *SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, "mood", settingsErr.Field)

	_, err = ParseSessionPatch(rawBody(t, `{"white_noise_type": 7}`))
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestParseClaimRequest(t *testing.T) {
	req, err := ParseClaimRequest(rawBody(t, `{"accumulated_points": 12.5}`))
	require.NoError(t, err)
	assert.Equal(t, "12.5", req.AccumulatedPoints.String())

	req, err = ParseClaimRequest(rawBody(t, `{"accumulated_points": "50"}`))
	require.NoError(t, err)
	assert.Equal(t, "50", req.AccumulatedPoints.String())

	req, err = ParseClaimRequest(rawBody(t, `{}`))
	require.NoError(t, err)
	assert.ErrorIs(t, ValidateClaimRequest(&req), ErrNoPointsToClaim)

	_, err = ParseClaimRequest(rawBody(t, `{"accumulated_points": "lots"}`))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseClaimRequest(rawBody(t, `{"accumulated_points": 5, "session_id": 42}`))
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	req, err = ParseClaimRequest(rawBody(t, `{"accumulated_points": 5, "session_id": "not-a-uuid"}`))
	require.NoError(t, err)
	assert.ErrorIs(t, ValidateClaimRequest(&req), ErrInvalidSessionID)

	_, err = ParseClaimRequest(rawBody(t, `{"accumulated_points": [1]}`))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

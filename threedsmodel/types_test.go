package threedsmodel_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"github.com/stretchr/testify/require"
)

func TestChallengeWindowSizeForWidth(t *testing.T) {
	tests := []struct {
		width int
		want  threedsmodel.ChallengeWindowSize
	}{
		{200, threedsmodel.ChallengeWindowH400xW250},
		{250, threedsmodel.ChallengeWindowH400xW250},
		{251, threedsmodel.ChallengeWindowH400xW390},
		{300, threedsmodel.ChallengeWindowH400xW390},
		{390, threedsmodel.ChallengeWindowH400xW390},
		{450, threedsmodel.ChallengeWindowH600xW500},
		{500, threedsmodel.ChallengeWindowH600xW500},
		{550, threedsmodel.ChallengeWindowH400xW600},
		{600, threedsmodel.ChallengeWindowH400xW600},
		{601, threedsmodel.ChallengeWindowFullscreen},
		{900, threedsmodel.ChallengeWindowFullscreen},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, threedsmodel.ChallengeWindowSizeForWidth(tt.width), "width %d", tt.width)
	}
}

func TestState(t *testing.T) {
	t.Run("terminal states", func(t *testing.T) {
		require.True(t, threedsmodel.StateFailed.IsTerminal())
		require.True(t, threedsmodel.StateCompleted.IsTerminal())
		require.True(t, threedsmodel.StateAuthorizedToAttempt.IsTerminal())
		require.False(t, threedsmodel.StatePendingChallenge.IsTerminal())
		require.False(t, threedsmodel.StatePendingDirectoryServer.IsTerminal())
		require.False(t, threedsmodel.State("SOMETHING_NEW").IsTerminal())
	})

	t.Run("success states", func(t *testing.T) {
		require.True(t, threedsmodel.StateCompleted.IsSuccess())
		require.True(t, threedsmodel.StateAuthorizedToAttempt.IsSuccess())
		require.False(t, threedsmodel.StateFailed.IsSuccess())
	})
}

func TestAuthentication_Decode(t *testing.T) {
	raw := `{"id":"a1","transactionId":"t1","state":"PENDING_CHALLENGE","acsUrl":"https://acs.example/creq","acsTransId":"acs-1","acsProtocolVersion":"2.2.0"}`

	var a threedsmodel.Authentication
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	require.Equal(t, threedsmodel.StatePendingChallenge, a.State)
	require.Equal(t, "https://acs.example/creq", a.ACSURL)
	require.Equal(t, "acs-1", a.ACSTransID)
	require.Equal(t, "2.2.0", a.ACSProtocolVersion)
}

func TestNewResult(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		r := threedsmodel.NewResult(&threedsmodel.Authentication{
			ID:                  "a1",
			State:               threedsmodel.StateCompleted,
			TransStatus:         "Y",
			AuthenticationValue: "AAAB",
			ECI:                 "05",
		})
		require.True(t, r.Success())
		require.Equal(t, "Y", r.TransStatus)
		require.Equal(t, "05", r.ECI)
	})

	t.Run("failed", func(t *testing.T) {
		r := threedsmodel.NewResult(&threedsmodel.Authentication{ID: "a1", State: threedsmodel.StateFailed, FailReason: "02"})
		require.False(t, r.Success())
		require.Equal(t, "02", r.FailReason)
	})

	t.Run("nil result", func(t *testing.T) {
		var r *threedsmodel.Result
		require.False(t, r.Success())
	})
}

func TestParameters_Validate(t *testing.T) {
	require.NoError(t, threedsmodel.Parameters{ID: "tx-1"}.Validate())

	err := threedsmodel.Parameters{ID: "  "}.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, threedsmodel.ErrConfiguration))
}

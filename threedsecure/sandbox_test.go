package threedsecure_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-threedsecure/api"
	"github.com/jrsteele09/go-threedsecure/frame"
	"github.com/jrsteele09/go-threedsecure/sandbox"
	"github.com/jrsteele09/go-threedsecure/threedsecure"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestService_AgainstSandbox(t *testing.T) {
	tests := []struct {
		name        string
		transaction *sandbox.Transaction
		wantState   threedsmodel.State
		wantSuccess bool
		wantSubmits []sandbox.Submission
	}{
		{
			name:        "frictionless",
			transaction: sandbox.Frictionless("tx-frictionless"),
			wantState:   threedsmodel.StateCompleted,
			wantSuccess: true,
			wantSubmits: []sandbox.Submission{sandbox.SubmissionDSMethod},
		},
		{
			name:        "challenge",
			transaction: sandbox.Challenge("tx-challenge"),
			wantState:   threedsmodel.StateCompleted,
			wantSuccess: true,
			wantSubmits: []sandbox.Submission{sandbox.SubmissionDSMethod, sandbox.SubmissionChallenge},
		},
		{
			name:        "failed",
			transaction: sandbox.Failed("tx-failed"),
			wantState:   threedsmodel.StateFailed,
			wantSuccess: false,
			wantSubmits: []sandbox.Submission{sandbox.SubmissionDSMethod},
		},
		{
			name:        "authorized to attempt",
			transaction: sandbox.AuthorizedToAttempt("tx-attempt"),
			wantState:   threedsmodel.StateAuthorizedToAttempt,
			wantSuccess: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(sandbox.New(
				sandbox.WithLogger(zerolog.Nop()),
				sandbox.WithPublicKey("pk_sandbox"),
				sandbox.WithTransactions(tt.transaction),
			))
			defer srv.Close()

			client, err := api.NewClient(srv.URL, "pk_sandbox", api.WithLogger(zerolog.Nop()))
			require.NoError(t, err)

			container := frame.NewMemoryContainer(1024)
			service, err := threedsecure.NewService(
				threedsecure.Options{Client: client, Container: container},
				threedsecure.WithLogger(zerolog.Nop()),
				threedsecure.WithTimeout(10*time.Second),
			)
			require.NoError(t, err)

			result, err := service.Execute(context.Background(), threedsmodel.Parameters{ID: tt.transaction.ID})
			require.NoError(t, err)
			require.Equal(t, tt.wantState, result.State)
			require.Equal(t, tt.wantSuccess, result.Success())
			require.Equal(t, tt.transaction.ID, result.ID)

			require.NotNil(t, tt.transaction.Browser())
			for _, submission := range tt.wantSubmits {
				require.True(t, tt.transaction.Submitted(submission), submission)
			}
			require.Equal(t, 0, container.Len())
		})
	}
}

func TestService_AgainstSandboxTimeout(t *testing.T) {
	// the stream waits for a challenge submission that never comes
	tx := sandbox.NewTransaction("tx-stalled", sandbox.Step{
		Event: threedsmodel.Authentication{
			State:               threedsmodel.StatePendingDirectoryServer,
			DSMethodURL:         "/dsmethod",
			DSMethodCallbackURL: "/dsmethod/callback",
		},
		WaitFor: sandbox.SubmissionChallenge,
	})
	srv := httptest.NewServer(sandbox.New(sandbox.WithLogger(zerolog.Nop()), sandbox.WithTransactions(tx)))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "pk_sandbox", api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	container := frame.NewMemoryContainer(400)
	service, err := threedsecure.NewService(
		threedsecure.Options{Client: client, Container: container},
		threedsecure.WithLogger(zerolog.Nop()),
		threedsecure.WithTimeout(200*time.Millisecond),
	)
	require.NoError(t, err)

	_, err = service.Execute(context.Background(), threedsmodel.Parameters{ID: "tx-stalled"})
	require.ErrorIs(t, err, threedsmodel.ErrCancelled)
	require.ErrorIs(t, err, threedsmodel.ErrSessionTimeout)
	require.True(t, tx.Submitted(sandbox.SubmissionDSMethod))
	require.Equal(t, 0, container.Len())
}

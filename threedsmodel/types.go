package threedsmodel

import (
	"fmt"
	"strings"
)

// State is the authentication state reported by the Authentication Service.
// Pending states ask the client to run a sub-flow; the others end the session.
type State string

const (
	// StatePendingDirectoryServer asks the client to run the DS Method (device fingerprinting).
	// Event carries: dsMethodUrl, dsMethodCallbackUrl
	StatePendingDirectoryServer State = "PENDING_DIRECTORY_SERVER"

	// StatePendingChallenge asks the client to present the ACS challenge.
	// Event carries: acsUrl, acsTransId, acsProtocolVersion
	StatePendingChallenge State = "PENDING_CHALLENGE"

	// StateFailed ends the session unsuccessfully.
	// Event carries: failReason
	StateFailed State = "FAILED"

	// StateCompleted ends the session with a completed authentication.
	// Event carries: transStatus, authenticationValue, eci, dsTransId, protocolVersion
	StateCompleted State = "COMPLETED"

	// StateAuthorizedToAttempt ends the session with an attempted authentication,
	// treated as a success by the card networks.
	StateAuthorizedToAttempt State = "AUTHORIZED_TO_ATTEMPT"
)

// IsTerminal reports whether the state ends the session.
func (s State) IsTerminal() bool {
	switch s {
	case StateFailed, StateCompleted, StateAuthorizedToAttempt:
		return true
	}
	return false
}

// IsSuccess reports whether the state is a successful terminal state.
func (s State) IsSuccess() bool {
	return s == StateCompleted || s == StateAuthorizedToAttempt
}

// ChallengeWindowSize is the EMV challengeWindowSize sent in the CReq.
type ChallengeWindowSize string

const (
	ChallengeWindowH400xW250  ChallengeWindowSize = "01"
	ChallengeWindowH400xW390  ChallengeWindowSize = "02"
	ChallengeWindowH600xW500  ChallengeWindowSize = "03"
	ChallengeWindowH400xW600  ChallengeWindowSize = "04"
	ChallengeWindowFullscreen ChallengeWindowSize = "05"
)

// ChallengeWindowSizeForWidth picks the largest window that fits the mount point width.
// Boundary widths map to the smaller window.
func ChallengeWindowSizeForWidth(width int) ChallengeWindowSize {
	switch {
	case width <= 250:
		return ChallengeWindowH400xW250
	case width <= 390:
		return ChallengeWindowH400xW390
	case width <= 500:
		return ChallengeWindowH600xW500
	case width <= 600:
		return ChallengeWindowH400xW600
	}
	return ChallengeWindowFullscreen
}

// Parameters identifies the 3DS transaction to authenticate.
type Parameters struct {
	// ID is the 3DS transaction id issued when the card was vaulted.
	ID string `json:"id"`
}

// Validate checks the parameters before a session is opened.
func (p Parameters) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("[Parameters.Validate] id is required: %w", ErrConfiguration)
	}
	return nil
}

// Authentication is one event pushed by the Authentication Service.
type Authentication struct {
	ID                  string `json:"id"`
	TransactionID       string `json:"transactionId"`
	State               State  `json:"state"`
	ACSURL              string `json:"acsUrl,omitempty"`
	ACSTransID          string `json:"acsTransId,omitempty"`
	ACSProtocolVersion  string `json:"acsProtocolVersion,omitempty"`
	DSMethodURL         string `json:"dsMethodUrl,omitempty"`
	DSMethodCallbackURL string `json:"dsMethodCallbackUrl,omitempty"`
	TransStatus         string `json:"transStatus,omitempty"`
	TransStatusReason   string `json:"transStatusReason,omitempty"`
	AuthenticationValue string `json:"authenticationValue,omitempty"`
	ECI                 string `json:"eci,omitempty"`
	DSTransID           string `json:"dsTransId,omitempty"`
	ProtocolVersion     string `json:"protocolVersion,omitempty"`
	FailReason          string `json:"failReason,omitempty"`
}

// Result is the outcome of one authentication session, built from the last event.
type Result struct {
	ID                  string `json:"id"`
	State               State  `json:"state"`
	TransStatus         string `json:"transStatus,omitempty"`
	TransStatusReason   string `json:"transStatusReason,omitempty"`
	AuthenticationValue string `json:"authenticationValue,omitempty"`
	ECI                 string `json:"eci,omitempty"`
	DSTransID           string `json:"dsTransId,omitempty"`
	ProtocolVersion     string `json:"protocolVersion,omitempty"`
	FailReason          string `json:"failReason,omitempty"`
}

// NewResult copies the result fields out of the final event.
func NewResult(a *Authentication) *Result {
	return &Result{
		ID:                  a.ID,
		State:               a.State,
		TransStatus:         a.TransStatus,
		TransStatusReason:   a.TransStatusReason,
		AuthenticationValue: a.AuthenticationValue,
		ECI:                 a.ECI,
		DSTransID:           a.DSTransID,
		ProtocolVersion:     a.ProtocolVersion,
		FailReason:          a.FailReason,
	}
}

// Success reports whether the card was authenticated (or authorized to attempt).
func (r *Result) Success() bool {
	return r != nil && r.State.IsSuccess()
}

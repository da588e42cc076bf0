package threedsecure

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-threedsecure/frame"
	ierrors "github.com/jrsteele09/go-threedsecure/internal/errors"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// FieldThreeDSMethodData is the form field carrying the DS Method payload.
	FieldThreeDSMethodData = "threeDSMethodData"
	// FieldCReq is the form field carrying the challenge request.
	FieldCReq = "creq"

	messageTypeCReq = "CReq"
)

// dsMethodData is posted to the DS Method URL.
type dsMethodData struct {
	ThreeDSServerTransID         string `json:"threeDSServerTransID"`
	ThreeDSMethodNotificationURL string `json:"threeDSMethodNotificationURL"`
}

// challengeRequest is the CReq posted to the ACS.
type challengeRequest struct {
	ThreeDSServerTransID string                           `json:"threeDSServerTransID"`
	ACSTransID           string                           `json:"acsTransID"`
	MessageVersion       string                           `json:"messageVersion"`
	MessageType          string                           `json:"messageType"`
	ChallengeWindowSize  threedsmodel.ChallengeWindowSize `json:"challengeWindowSize"`
}

// dispatch runs the flow step for one event and reports whether the event
// ends the session. Unknown states are ignored.
func (s *Service) dispatch(ctx context.Context, sess *session, event *threedsmodel.Authentication) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "threedsecure.flowStep", trace.WithAttributes(attribute.String("threeds.state", string(event.State))))
	defer span.End()

	sess.logger.Debug().Str("state", string(event.State)).Msg("flowStep")

	var err error
	switch event.State {
	case threedsmodel.StatePendingDirectoryServer:
		err = s.handleDSMethod(ctx, sess, event)
	case threedsmodel.StatePendingChallenge:
		err = s.handleChallenge(ctx, sess, event)
	case threedsmodel.StateFailed, threedsmodel.StateCompleted, threedsmodel.StateAuthorizedToAttempt:
		sess.logger.Debug().Str("state", string(event.State)).Msg("handleResult")
		return true, nil
	default:
		sess.logger.Warn().Str("state", string(event.State)).Msg("flowStep - unknown state, ignoring")
		return false, nil
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return false, err
}

func (s *Service) handleDSMethod(ctx context.Context, sess *session, event *threedsmodel.Authentication) error {
	if strings.TrimSpace(event.DSMethodURL) == "" {
		return ierrors.WithKind(threedsmodel.ErrConfiguration, ierrors.ErrMissingField, "[Service.handleDSMethod] dsMethodUrl")
	}
	if strings.TrimSpace(event.DSMethodCallbackURL) == "" {
		return ierrors.WithKind(threedsmodel.ErrConfiguration, ierrors.ErrMissingField, "[Service.handleDSMethod] dsMethodCallbackUrl")
	}

	return sess.dsMethod.Execute(ctx, frame.Target{
		URL:       event.DSMethodURL,
		FieldName: FieldThreeDSMethodData,
		Payload: dsMethodData{
			ThreeDSServerTransID:         event.TransactionID,
			ThreeDSMethodNotificationURL: event.DSMethodCallbackURL,
		},
		Visible: false,
	}, s.container)
}

func (s *Service) handleChallenge(ctx context.Context, sess *session, event *threedsmodel.Authentication) error {
	if strings.TrimSpace(event.ACSURL) == "" {
		return ierrors.WithKind(threedsmodel.ErrConfiguration, ierrors.ErrMissingField, "[Service.handleChallenge] acsUrl")
	}

	windowSize := threedsmodel.ChallengeWindowSizeForWidth(s.container.Width())
	sess.logger.Debug().Str("challengeWindowSize", string(windowSize)).Msg("handleChallenge")

	return sess.challenge.Execute(ctx, frame.Target{
		URL:       event.ACSURL,
		FieldName: FieldCReq,
		Payload: challengeRequest{
			ThreeDSServerTransID: event.TransactionID,
			ACSTransID:           event.ACSTransID,
			MessageVersion:       event.ACSProtocolVersion,
			MessageType:          messageTypeCReq,
			ChallengeWindowSize:  windowSize,
		},
		Visible: true,
	}, s.container)
}

package merge

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// SaveEvent applies whichever sub-payloads an event carries, in the fixed
// order user, member, channel, current user, message. Each sub-save commits
// independently: a rejected message does not roll back the upserts that
// already succeeded in the same event. The returned error joins every
// sub-save failure.
func (s *Service) SaveEvent(ctx context.Context, event EventPayload) error {
	var failures []error

	if event.User != nil {
		if _, err := s.SaveUser(ctx, *event.User); err != nil {
			failures = append(failures, err)
		}
	}

	if event.Member != nil {
		if event.CID == "" {
			// A member fragment is only meaningful with channel context.
			s.logger.Debug("event member skipped, no channel id",
				zap.String("event_type", event.Type))
		} else if _, err := s.SaveMember(ctx, *event.Member, event.CID); err != nil {
			failures = append(failures, err)
		}
	}

	if event.Channel != nil {
		channel := *event.Channel
		if channel.CID == "" {
			// Channel detail is upserted for the cid implied by the event.
			channel.CID = event.CID
		}
		if _, err := s.SaveChannel(ctx, channel, nil); err != nil {
			failures = append(failures, err)
		}
	}

	if event.CurrentUser != nil {
		if _, err := s.SaveCurrentUser(ctx, *event.CurrentUser); err != nil {
			failures = append(failures, err)
		}
	}

	if event.Message != nil {
		if event.CID == "" {
			saveErr := newSaveError(opSaveEvent, "message_missing_channel_id", ErrMissingChannelID)
			s.logError(opSaveEvent, saveErr,
				zap.String("event_type", event.Type),
				zap.String("message_id", event.Message.ID))
			failures = append(failures, saveErr)
		} else if _, err := s.SaveMessage(ctx, *event.Message, event.CID); err != nil {
			failures = append(failures, err)
		}
	}

	return errors.Join(failures...)
}

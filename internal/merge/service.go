package merge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumeno/chatsync/internal/query"
	"github.com/lumeno/chatsync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingUserPayload = errors.New("user payload is required")
	// ErrMissingChannelID indicates that a save requiring a channel identity
	// was invoked without one.
	ErrMissingChannelID = errors.New("merge: channel id is required")
	// ErrChannelNotFound indicates that a message's channel identity could
	// not be resolved against the local cache.
	ErrChannelNotFound = errors.New("merge: channel not found")

	noOpLogger = zap.NewNop()
)

// SaveError is the typed failure returned by save operations. Code carries an
// operation.reason pair for the diagnostic sink.
type SaveError struct {
	code string
	err  error
}

func (e *SaveError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *SaveError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason failure code.
func (e *SaveError) Code() string {
	return e.code
}

const (
	opServiceNew      = "merge.service.new"
	opSaveUser        = "merge.save_user"
	opSaveCurrentUser = "merge.save_current_user"
	opSaveMember      = "merge.save_member"
	opSaveChannel     = "merge.save_channel"
	opSaveMessage     = "merge.save_message"
	opSaveEvent       = "merge.save_event"
)

func newSaveError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &SaveError{code: code, err: cause}
}

var knownUserRoles = map[string]struct{}{
	store.RoleUser:      {},
	store.RoleAdmin:     {},
	store.RoleGuest:     {},
	store.RoleAnonymous: {},
}

var knownChannelRoles = map[string]struct{}{
	store.ChannelRoleMember:    {},
	store.ChannelRoleModerator: {},
	store.ChannelRoleOwner:     {},
}

// Config describes the dependencies of the merge engine.
type Config struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	// Scopes is required only when channels are saved under a query scope.
	Scopes *query.Index
	// Per-entity extra-data codecs; the JSON-object codec is used when nil.
	UserExtraData    ExtraDataCodec
	ChannelExtraData ExtraDataCodec
	MessageExtraData ExtraDataCodec
}

// Service is the merge engine. Each Save operation runs inside its own
// transaction: either the whole per-entity overwrite commits or the record is
// left exactly as it was found.
type Service struct {
	db           *gorm.DB
	clock        func() time.Time
	logger       *zap.Logger
	scopes       *query.Index
	userCodec    ExtraDataCodec
	channelCodec ExtraDataCodec
	messageCodec ExtraDataCodec
}

// NewService constructs the merge engine.
func NewService(cfg Config) (*Service, error) {
	if cfg.Database == nil {
		return nil, newSaveError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	userCodec := cfg.UserExtraData
	if userCodec == nil {
		userCodec = NewObjectCodec()
	}
	channelCodec := cfg.ChannelExtraData
	if channelCodec == nil {
		channelCodec = NewObjectCodec()
	}
	messageCodec := cfg.MessageExtraData
	if messageCodec == nil {
		messageCodec = NewObjectCodec()
	}
	return &Service{
		db:           cfg.Database,
		clock:        clock,
		logger:       logger,
		scopes:       cfg.Scopes,
		userCodec:    userCodec,
		channelCodec: channelCodec,
		messageCodec: messageCodec,
	}, nil
}

// SaveUser upserts a user record. Decode failures in the extra-data blob are
// replaced by the codec default and reported, never raised.
func (s *Service) SaveUser(ctx context.Context, payload UserPayload) (*store.User, error) {
	var saved *store.User
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.saveUserTx(tx, payload)
		if err != nil {
			return err
		}
		saved = user
		return nil
	})
	if txErr != nil {
		s.logError(opSaveUser, txErr, zap.String("user_id", payload.ID))
		return nil, txErr
	}
	return saved, nil
}

// SaveCurrentUser upserts the singleton current-user record. Unread counts
// are overwritten only when the payload supplies them.
func (s *Service) SaveCurrentUser(ctx context.Context, payload CurrentUserPayload) (*store.CurrentUser, error) {
	var saved *store.CurrentUser
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.saveCurrentUserTx(tx, payload)
		if err != nil {
			return err
		}
		saved = current
		return nil
	})
	if txErr != nil {
		s.logError(opSaveCurrentUser, txErr, zap.String("user_id", payload.User.ID))
		return nil, txErr
	}
	return saved, nil
}

// SaveMember upserts a channel membership by its composite identity. The
// owning user is saved first; a member save is invalid when its user
// sub-payload cannot be saved.
func (s *Service) SaveMember(ctx context.Context, payload MemberPayload, channelCID string) (*store.Member, error) {
	cid, err := store.ParseChannelCID(channelCID)
	if err != nil {
		saveErr := newSaveError(opSaveMember, "invalid_channel_cid", err)
		s.logError(opSaveMember, saveErr, zap.String("channel_cid", channelCID))
		return nil, saveErr
	}
	var saved *store.Member
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.saveMemberTx(tx, payload, cid)
		if err != nil {
			return err
		}
		saved = member
		return nil
	})
	if txErr != nil {
		s.logError(opSaveMember, txErr, zap.String("channel_cid", cid.String()))
		return nil, txErr
	}
	return saved, nil
}

// SaveChannel upserts a channel and everything it embeds: creator, member
// list and message page. When scope is non-nil the channel is additionally
// attached to that query scope; re-attaching is a no-op.
func (s *Service) SaveChannel(ctx context.Context, payload ChannelPayload, scope *query.Scope) (*store.Channel, error) {
	var saved *store.Channel
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		channel, err := s.saveChannelTx(tx, payload)
		if err != nil {
			return err
		}
		if scope != nil {
			if s.scopes == nil {
				return newSaveError(opSaveChannel, "missing_scope_index", errors.New("scope index is not configured"))
			}
			if err := s.scopes.AttachTx(tx, *scope, channel.CID); err != nil {
				return newSaveError(opSaveChannel, "scope_attach_failed", err)
			}
		}
		saved = channel
		return nil
	})
	if txErr != nil {
		s.logError(opSaveChannel, txErr, zap.String("channel_cid", payload.CID))
		return nil, txErr
	}
	return saved, nil
}

// SaveMessage upserts a message under the channel identified by channelCID.
// The channel identity must be supplied by the caller and must resolve to a
// cached channel; otherwise the save is rejected and reported, never
// silently dropped.
func (s *Service) SaveMessage(ctx context.Context, payload MessagePayload, channelCID string) (*store.Message, error) {
	if channelCID == "" {
		saveErr := newSaveError(opSaveMessage, "missing_channel_id", ErrMissingChannelID)
		s.logError(opSaveMessage, saveErr, zap.String("message_id", payload.ID))
		return nil, saveErr
	}
	cid, err := store.ParseChannelCID(channelCID)
	if err != nil {
		saveErr := newSaveError(opSaveMessage, "invalid_channel_cid", err)
		s.logError(opSaveMessage, saveErr, zap.String("message_id", payload.ID), zap.String("channel_cid", channelCID))
		return nil, saveErr
	}
	var saved *store.Message
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		message, err := s.saveMessageTx(tx, payload, cid)
		if err != nil {
			return err
		}
		saved = message
		return nil
	})
	if txErr != nil {
		s.logError(opSaveMessage, txErr, zap.String("message_id", payload.ID), zap.String("channel_cid", cid.String()))
		return nil, txErr
	}
	return saved, nil
}

func (s *Service) saveUserTx(tx *gorm.DB, payload UserPayload) (*store.User, error) {
	userID, err := store.NewUserID(payload.ID)
	if err != nil {
		return nil, newSaveError(opSaveUser, "invalid_user_id", err)
	}

	var user store.User
	err = tx.Where("user_id = ?", userID.String()).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = store.User{UserID: userID.String()}
	} else if err != nil {
		return nil, newSaveError(opSaveUser, "user_lookup_failed", err)
	}

	user.Role = s.roleOrDefault(payload.Role, knownUserRoles, store.DefaultUserRole, "user", userID.String())
	user.Online = payload.Online
	user.Banned = payload.Banned
	if !payload.CreatedAt.IsZero() {
		user.CreatedAt = payload.CreatedAt
	}
	if !payload.UpdatedAt.IsZero() {
		user.UpdatedAt = payload.UpdatedAt
	} else {
		user.UpdatedAt = s.clock().UTC()
	}
	user.LastActiveAt = payload.LastActiveAt
	user.ExtraData = s.decodeExtraData(s.userCodec, payload.ExtraData, "user", userID.String())

	if err := tx.Save(&user).Error; err != nil {
		return nil, newSaveError(opSaveUser, "user_write_failed", err)
	}
	return &user, nil
}

func (s *Service) saveCurrentUserTx(tx *gorm.DB, payload CurrentUserPayload) (*store.CurrentUser, error) {
	user, err := s.saveUserTx(tx, payload.User)
	if err != nil {
		return nil, newSaveError(opSaveCurrentUser, "user_save_failed", err)
	}

	var current store.CurrentUser
	err = tx.Where("slot = ?", store.CurrentUserSlot).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		current = store.CurrentUser{Slot: store.CurrentUserSlot}
	} else if err != nil {
		return nil, newSaveError(opSaveCurrentUser, "current_user_lookup_failed", err)
	}

	current.UserID = user.UserID
	if payload.UnreadChannels != nil {
		current.UnreadChannels = *payload.UnreadChannels
	}
	if payload.UnreadMessages != nil {
		current.UnreadMessages = *payload.UnreadMessages
	}
	current.UpdatedAt = s.clock().UTC()

	if err := tx.Save(&current).Error; err != nil {
		return nil, newSaveError(opSaveCurrentUser, "current_user_write_failed", err)
	}
	return &current, nil
}

func (s *Service) saveMemberTx(tx *gorm.DB, payload MemberPayload, cid store.ChannelCID) (*store.Member, error) {
	if payload.User == nil {
		return nil, newSaveError(opSaveMember, "missing_user", errMissingUserPayload)
	}
	user, err := s.saveUserTx(tx, *payload.User)
	if err != nil {
		return nil, newSaveError(opSaveMember, "user_save_failed", err)
	}

	userID := store.UserID(user.UserID)
	memberID := store.NewMemberID(cid, userID)

	var member store.Member
	err = tx.Where("channel_cid = ? AND user_id = ?", cid.String(), userID.String()).Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		member = store.Member{
			ChannelCID: cid.String(),
			UserID:     userID.String(),
		}
	} else if err != nil {
		return nil, newSaveError(opSaveMember, "member_lookup_failed", err)
	}

	member.MemberID = memberID.String()
	member.ChannelRole = s.roleOrDefault(payload.Role, knownChannelRoles, store.DefaultChannelRole, "member", memberID.String())
	if !payload.CreatedAt.IsZero() {
		member.MemberCreatedAt = payload.CreatedAt
	}
	if !payload.UpdatedAt.IsZero() {
		member.MemberUpdatedAt = payload.UpdatedAt
	} else {
		member.MemberUpdatedAt = s.clock().UTC()
	}

	if err := tx.Save(&member).Error; err != nil {
		return nil, newSaveError(opSaveMember, "member_write_failed", err)
	}
	return &member, nil
}

func (s *Service) saveChannelTx(tx *gorm.DB, payload ChannelPayload) (*store.Channel, error) {
	cid, err := store.ParseChannelCID(payload.CID)
	if err != nil {
		return nil, newSaveError(opSaveChannel, "invalid_channel_cid", err)
	}

	createdByID := ""
	if payload.CreatedBy != nil {
		creator, err := s.saveUserTx(tx, *payload.CreatedBy)
		if err != nil {
			return nil, newSaveError(opSaveChannel, "creator_save_failed", err)
		}
		createdByID = creator.UserID
	}

	var channel store.Channel
	err = tx.Where("cid = ?", cid.String()).Take(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		channel = store.Channel{CID: cid.String()}
	} else if err != nil {
		return nil, newSaveError(opSaveChannel, "channel_lookup_failed", err)
	}

	channel.ChannelType = cid.Type()
	channel.Frozen = payload.Frozen
	channel.Team = payload.Team
	channel.MemberCount = payload.MemberCount
	channel.LastMessageAt = payload.LastMessageAt
	channel.DeletedAt = payload.DeletedAt
	if payload.CreatedAt != nil && !payload.CreatedAt.IsZero() {
		channel.CreatedAt = *payload.CreatedAt
	} else {
		// The channel-level timestamp falls back to the configuration
		// snapshot's creation time when absent.
		channel.CreatedAt = payload.Config.CreatedAt
	}
	if !payload.UpdatedAt.IsZero() {
		channel.UpdatedAt = payload.UpdatedAt
	} else {
		channel.UpdatedAt = s.clock().UTC()
	}
	if createdByID != "" {
		channel.CreatedByID = createdByID
	}
	config, err := channelConfigFromPayload(payload.Config)
	if err != nil {
		return nil, newSaveError(opSaveChannel, "config_encode_failed", err)
	}
	channel.Config = config
	channel.ExtraData = s.decodeExtraData(s.channelCodec, payload.ExtraData, "channel", cid.String())

	if err := tx.Save(&channel).Error; err != nil {
		return nil, newSaveError(opSaveChannel, "channel_write_failed", err)
	}

	for _, memberPayload := range payload.Members {
		if _, err := s.saveMemberTx(tx, memberPayload, cid); err != nil {
			return nil, newSaveError(opSaveChannel, "member_save_failed", err)
		}
	}
	for _, messagePayload := range payload.Messages {
		if _, err := s.saveMessageTx(tx, messagePayload, cid); err != nil {
			return nil, newSaveError(opSaveChannel, "message_save_failed", err)
		}
	}
	return &channel, nil
}

func (s *Service) saveMessageTx(tx *gorm.DB, payload MessagePayload, cid store.ChannelCID) (*store.Message, error) {
	messageID, err := store.NewMessageID(payload.ID)
	if err != nil {
		return nil, newSaveError(opSaveMessage, "invalid_message_id", err)
	}

	var channelCount int64
	if err := tx.Model(&store.Channel{}).Where("cid = ?", cid.String()).Count(&channelCount).Error; err != nil {
		return nil, newSaveError(opSaveMessage, "channel_lookup_failed", err)
	}
	if channelCount == 0 {
		return nil, newSaveError(opSaveMessage, "channel_not_found", fmt.Errorf("%w: %s", ErrChannelNotFound, cid.String()))
	}

	authorID := ""
	if payload.User != nil {
		author, err := s.saveUserTx(tx, *payload.User)
		if err != nil {
			return nil, newSaveError(opSaveMessage, "author_save_failed", err)
		}
		authorID = author.UserID
	}

	var message store.Message
	err = tx.Where("message_id = ?", messageID.String()).Take(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		message = store.Message{MessageID: messageID.String()}
	} else if err != nil {
		return nil, newSaveError(opSaveMessage, "message_lookup_failed", err)
	}

	message.ChannelCID = cid.String()
	message.Text = payload.Text
	if authorID != "" {
		message.AuthorID = authorID
	}
	if !payload.CreatedAt.IsZero() {
		message.CreatedAt = payload.CreatedAt
	}
	if !payload.UpdatedAt.IsZero() {
		message.UpdatedAt = payload.UpdatedAt
	} else {
		message.UpdatedAt = s.clock().UTC()
	}
	message.ExtraData = s.decodeExtraData(s.messageCodec, payload.ExtraData, "message", messageID.String())

	if err := tx.Save(&message).Error; err != nil {
		return nil, newSaveError(opSaveMessage, "message_write_failed", err)
	}
	return &message, nil
}

func channelConfigFromPayload(payload ChannelConfigPayload) (store.ChannelConfig, error) {
	commands := payload.Commands
	if commands == nil {
		commands = []string{}
	}
	encoded, err := json.Marshal(commands)
	if err != nil {
		return store.ChannelConfig{}, err
	}
	return store.ChannelConfig{
		CreatedAt:        payload.CreatedAt,
		UpdatedAt:        payload.UpdatedAt,
		TypingEvents:     payload.TypingEvents,
		ReadEvents:       payload.ReadEvents,
		Replies:          payload.Replies,
		Reactions:        payload.Reactions,
		Uploads:          payload.Uploads,
		URLEnrichment:    payload.URLEnrichment,
		MessageRetention: payload.MessageRetention,
		MaxMessageLength: payload.MaxMessageLength,
		CommandsJSON:     string(encoded),
	}, nil
}

// roleOrDefault substitutes the documented default for role values outside
// the known vocabulary and surfaces a diagnostic.
func (s *Service) roleOrDefault(raw string, vocabulary map[string]struct{}, fallback, entityKind, identity string) string {
	if raw == "" {
		return fallback
	}
	if _, ok := vocabulary[raw]; ok {
		return raw
	}
	s.logger.Warn("unknown role replaced by default",
		zap.String("entity", entityKind),
		zap.String("identity", identity),
		zap.String("role", raw),
		zap.String("default", fallback))
	return fallback
}

// decodeExtraData applies the codec with default-on-failure semantics and
// reports decode failures to the diagnostic sink.
func (s *Service) decodeExtraData(codec ExtraDataCodec, raw json.RawMessage, entityKind, identity string) string {
	decoded, err := codec.Decode(raw)
	if err != nil {
		s.logger.Warn("extra data decode failed, using default",
			zap.String("entity", entityKind),
			zap.String("identity", identity),
			zap.Error(err))
		return string(codec.Default())
	}
	return string(decoded)
}

func (s *Service) logError(operation string, err error, fields ...zap.Field) {
	attrs := []zap.Field{zap.String("operation", operation), zap.Error(err)}
	attrs = append(attrs, fields...)
	s.logger.Error("merge save failed", attrs...)
}

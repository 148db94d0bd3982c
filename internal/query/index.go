package query

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("query: database handle is required")

// IndexConfig describes the dependencies of the scope index.
type IndexConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Index persists scope membership for cached channels.
type Index struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewIndex constructs the scope index.
func NewIndex(cfg IndexConfig) (*Index, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Attach adds a channel to a scope's result set. Attaching an already
// attached channel is a no-op.
func (i *Index) Attach(ctx context.Context, scope Scope, channelCID string) error {
	return i.AttachTx(i.db.WithContext(ctx), scope, channelCID)
}

// AttachTx is Attach inside an existing transaction.
func (i *Index) AttachTx(tx *gorm.DB, scope Scope, channelCID string) error {
	record := ScopeChannel{
		ScopeName:  scope.Name(),
		ChannelCID: channelCID,
		AttachedAt: i.clock().UTC(),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// Detach removes a channel from a scope's result set. Detaching a channel
// that is not attached is a no-op.
func (i *Index) Detach(ctx context.Context, scope Scope, channelCID string) error {
	return i.db.WithContext(ctx).
		Where("scope_name = ? AND channel_cid = ?", scope.Name(), channelCID).
		Delete(&ScopeChannel{}).Error
}

// ChannelCIDs lists the channel identities attached to a scope, oldest
// attachment first.
func (i *Index) ChannelCIDs(ctx context.Context, scope Scope) ([]string, error) {
	var records []ScopeChannel
	err := i.db.WithContext(ctx).
		Where("scope_name = ?", scope.Name()).
		Order("attached_at ASC, channel_cid ASC").
		Find(&records).Error
	if err != nil {
		i.logger.Error("scope channel listing failed",
			zap.String("scope", scope.Name()),
			zap.Error(err))
		return nil, err
	}
	cids := make([]string, 0, len(records))
	for _, record := range records {
		cids = append(cids, record.ChannelCID)
	}
	return cids, nil
}

// Package gasselect persists the last confirmed gas choice per chain.
package gasselect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/cache"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/logger"
)

// Repository reads through the cache into Postgres. With a nil db it is cache-only.
type Repository struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewRepository(db *gorm.DB, c cache.Cache, ttl time.Duration) *Repository {
	return &Repository{db: db, cache: c, ttl: ttl, log: logger.Named("gasselect")}
}

func cacheKey(chainID int64) string {
	return "gas_selection:" + strconv.FormatInt(chainID, 10)
}

// Get returns the stored selection, ok=false when the chain has none.
func (r *Repository) Get(ctx context.Context, chainID int64) (model.GasSelection, bool, error) {
	var sel model.GasSelection
	err := r.cache.Get(ctx, cacheKey(chainID), &sel)
	if err == nil {
		return sel, true, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.log.Warn("gas selection cache read failed", zap.Int64("chain_id", chainID), zap.Error(err))
	}
	if r.db == nil {
		return model.GasSelection{}, false, nil
	}

	err = r.db.WithContext(ctx).Where("chain_id = ?", chainID).First(&sel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.GasSelection{}, false, nil
	}
	if err != nil {
		return model.GasSelection{}, false, errno.Wrap(errno.ErrStorage, err)
	}
	if err := r.cache.Set(ctx, cacheKey(chainID), sel, r.ttl); err != nil {
		r.log.Warn("gas selection cache backfill failed", zap.Int64("chain_id", chainID), zap.Error(err))
	}
	return sel, true, nil
}

// Save upserts the selection and refreshes the cache.
func (r *Repository) Save(ctx context.Context, sel model.GasSelection) error {
	switch sel.LastTimeSelect {
	case model.LastSelectGasPrice, model.LastSelectGasLevel:
	default:
		return errno.Wrap(errno.ErrInvalidParam, fmt.Errorf("last select %q", sel.LastTimeSelect))
	}
	sel.UpdatedAt = time.Now()

	if r.db != nil {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_time_select", "gas_price", "gas_level", "updated_at"}),
		}).Create(&sel).Error
		if err != nil {
			return errno.Wrap(errno.ErrStorage, err)
		}
	}
	if err := r.cache.Set(ctx, cacheKey(sel.ChainID), sel, r.ttl); err != nil {
		if r.db == nil {
			return errno.Wrap(errno.ErrStorage, err)
		}
		// 数据库已写入, 删除旧缓存让下次读回源
		_ = r.cache.Delete(ctx, cacheKey(sel.ChainID))
		r.log.Warn("gas selection cache write failed", zap.Int64("chain_id", sel.ChainID), zap.Error(err))
	}
	return nil
}

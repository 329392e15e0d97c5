package docserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// Repository stores documents in a relational table. It implements
// remote.Store, so the CLI can also point at a database directly.
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ remote.Store = (*Repository)(nil)

// NewRepository wraps an open gorm connection.
func NewRepository(db *gorm.DB, log *zap.Logger) *Repository {
	return &Repository{db: db, log: logging.OrNop(log)}
}

func (r *Repository) List(ctx context.Context, collection string) ([]remote.Document, error) {
	var rows []DocumentRow
	if err := r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		r.log.Error("Failed to list documents", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	docs := make([]remote.Document, len(rows))
	for i, row := range rows {
		docs[i] = row.toDocument()
	}
	return docs, nil
}

func (r *Repository) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var row DocumentRow
	err := r.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return remote.Document{}, remote.ErrNotFound
	}
	if err != nil {
		r.log.Error("Failed to get document", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return remote.Document{}, err
	}
	return row.toDocument(), nil
}

func (r *Repository) Create(ctx context.Context, collection string, data json.RawMessage) (remote.Document, error) {
	return r.Put(ctx, collection, uuid.NewString(), data)
}

// Put inserts or replaces the document, bumping its version.
func (r *Repository) Put(ctx context.Context, collection, id string, data json.RawMessage) (remote.Document, error) {
	var out DocumentRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row DocumentRow
		err := tx.Where("collection = ? AND id = ?", collection, id).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			seq, err := nextSeq(tx)
			if err != nil {
				return err
			}
			out = DocumentRow{
				Collection: collection,
				ID:         id,
				Version:    1,
				Seq:        seq,
				Data:       datatypes.JSON(data),
			}
			return tx.Create(&out).Error
		case err != nil:
			return err
		}
		row.Version++
		row.Data = datatypes.JSON(data)
		row.UpdatedAt = time.Now()
		out = row
		return tx.Save(&out).Error
	})
	if err != nil {
		r.log.Error("Failed to put document", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return remote.Document{}, err
	}
	return out.toDocument(), nil
}

// Update replaces an existing document. ifVersion > 0 makes the write
// conditional on the stored version.
func (r *Repository) Update(ctx context.Context, collection, id string, data json.RawMessage, ifVersion int64) (remote.Document, error) {
	var out DocumentRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&DocumentRow{}).Where("collection = ? AND id = ?", collection, id)
		if ifVersion > 0 {
			q = q.Where("version = ?", ifVersion)
		}
		res := q.Updates(map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"data":       datatypes.JSON(data),
			"updated_at": time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&DocumentRow{}).Where("collection = ? AND id = ?", collection, id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return remote.ErrNotFound
			}
			return remote.ErrConflict
		}
		return tx.Where("collection = ? AND id = ?", collection, id).First(&out).Error
	})
	if err != nil {
		if !errors.Is(err, remote.ErrConflict) && !errors.Is(err, remote.ErrNotFound) {
			r.log.Error("Failed to update document", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		}
		return remote.Document{}, err
	}
	return out.toDocument(), nil
}

func (r *Repository) Delete(ctx context.Context, collection, id string) error {
	res := r.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&DocumentRow{})
	if res.Error != nil {
		r.log.Error("Failed to delete document", zap.String("collection", collection), zap.String("id", id), zap.Error(res.Error))
		return res.Error
	}
	if res.RowsAffected == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func nextSeq(tx *gorm.DB) (int64, error) {
	var n int64
	if err := tx.Model(&DocumentRow{}).Select("COALESCE(MAX(seq), 0)").Row().Scan(&n); err != nil {
		return 0, err
	}
	return n + 1, nil
}

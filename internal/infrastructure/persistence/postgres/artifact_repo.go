package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/repository"
	apperrors "vidsum-ai-api/pkg/errors"
)

const (
	artifactSeqName = "video_artifact_seq"
	scanBatch       = 100
)

// artifactModel video_artifacts 表；payload 保存完整产物，主题与要点冗余为数组列便于排查
type artifactModel struct {
	VideoID        string         `gorm:"column:video_id;primaryKey;type:varchar(64)"`
	Seq            int64          `gorm:"column:seq;not null;index"`
	ContentHash    string         `gorm:"column:content_hash;type:varchar(64);index"`
	OverallTopic   string         `gorm:"column:overall_topic;type:text"`
	OverallSummary string         `gorm:"column:overall_summary;type:text"`
	Topics         pq.StringArray `gorm:"column:topics;type:text[]"`
	KeyPoints      pq.StringArray `gorm:"column:key_points;type:text[]"`
	Payload        []byte         `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;index"`
}

func (artifactModel) TableName() string { return "video_artifacts" }

func toArtifactModel(a *entity.VideoArtifact, seq int64) (*artifactModel, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return &artifactModel{
		VideoID:        a.VideoID,
		Seq:            seq,
		ContentHash:    a.ContentHash,
		OverallTopic:   a.OverallTopic,
		OverallSummary: a.OverallSummary,
		Topics:         pq.StringArray(a.Topics()),
		KeyPoints:      pq.StringArray(a.KeyPoints()),
		Payload:        payload,
		CreatedAt:      a.CreatedAt,
	}, nil
}

func (m *artifactModel) toRecord() (*repository.ArtifactRecord, error) {
	var a entity.VideoArtifact
	if err := json.Unmarshal(m.Payload, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact %s: %w", m.VideoID, err)
	}
	return &repository.ArtifactRecord{Artifact: &a, Seq: m.Seq}, nil
}

// ArtifactRepository PostgreSQL 产物仓储
type ArtifactRepository struct {
	client *Client
	tx     *TxManager
}

// NewArtifactRepository 创建产物仓储
func NewArtifactRepository(client *Client) *ArtifactRepository {
	return &ArtifactRepository{client: client, tx: NewTxManager(client)}
}

// Get 获取产物
func (r *ArtifactRepository) Get(ctx context.Context, videoID string) (*repository.ArtifactRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.Get")
	defer span.End()

	var m artifactModel
	if err := getDB(ctx, r.client.db).First(&m, "video_id = ?", videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrArtifactNotFound.WithDetail(videoID)
		}
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get artifact")
	}
	return m.toRecord()
}

// Exists 判断产物是否存在
func (r *ArtifactRepository) Exists(ctx context.Context, videoID string) (bool, error) {
	var n int64
	err := getDB(ctx, r.client.db).Model(&artifactModel{}).Where("video_id = ?", videoID).Count(&n).Error
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to check artifact")
	}
	return n > 0, nil
}

// Save 写入产物，同 id 覆盖并分配新的写入序号
func (r *ArtifactRepository) Save(ctx context.Context, artifact *entity.VideoArtifact) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.Save")
	defer span.End()

	m, err := toArtifactModel(artifact, 0)
	if err != nil {
		return 0, err
	}

	// 序号分配与写入在同一事务内，失败时不留下半写入的记录
	err = r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		db := getDB(txCtx, r.client.db)
		if err := db.Raw("SELECT nextval('" + artifactSeqName + "')").Scan(&m.Seq).Error; err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to allocate artifact seq")
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}},
			UpdateAll: true,
		}).Create(m).Error
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save artifact")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return m.Seq, nil
}

// Delete 删除产物
func (r *ArtifactRepository) Delete(ctx context.Context, videoID string) error {
	res := getDB(ctx, r.client.db).Delete(&artifactModel{}, "video_id = ?", videoID)
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.CodeDatabaseError, "failed to delete artifact")
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrArtifactNotFound.WithDetail(videoID)
	}
	return nil
}

// List 按创建时间倒序分页，同一时间按写入序号倒序
func (r *ArtifactRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.VideoArtifact], error) {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db).Model(&artifactModel{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count artifacts")
	}

	var models []artifactModel
	err := db.Order("created_at DESC").Order("seq DESC").
		Offset(pagination.Offset()).Limit(pagination.Limit()).
		Find(&models).Error
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list artifacts")
	}

	items := make([]*entity.VideoArtifact, 0, len(models))
	for i := range models {
		rec, err := models[i].toRecord()
		if err != nil {
			return nil, err
		}
		items = append(items, rec.Artifact)
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

// Scan 按写入序号分批遍历序号大于 afterSeq 的记录
func (r *ArtifactRepository) Scan(ctx context.Context, afterSeq int64, fn func(rec *repository.ArtifactRecord) error) error {
	ctx, span := tracer.Start(ctx, "postgres.ArtifactRepository.Scan")
	defer span.End()

	lastSeq := afterSeq
	for {
		var models []artifactModel
		err := getDB(ctx, r.client.db).Where("seq > ?", lastSeq).Order("seq ASC").Limit(scanBatch).Find(&models).Error
		if err != nil {
			span.RecordError(err)
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to scan artifacts")
		}
		for i := range models {
			rec, err := models[i].toRecord()
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
			lastSeq = models[i].Seq
		}
		if len(models) < scanBatch {
			return nil
		}
	}
}

// Watermark 当前最大写入序号与记录数
func (r *ArtifactRepository) Watermark(ctx context.Context) (repository.Watermark, error) {
	var row struct {
		MaxSeq int64
		Count  int64
	}
	err := getDB(ctx, r.client.db).Model(&artifactModel{}).
		Select("COALESCE(MAX(seq), 0) AS max_seq, COUNT(*) AS count").
		Scan(&row).Error
	if err != nil {
		return repository.Watermark{}, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to read artifact watermark")
	}
	return repository.Watermark{MaxSeq: row.MaxSeq, Count: row.Count}, nil
}

// Package repository 定义了与数据库、缓存和对象存储进行数据交换的接口和实现。
package repository

import (
	"context"
	"docqa-go/internal/model"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository 定义了 documents 表的持久化操作。
type DocumentRepository interface {
	// Upsert 以 hash 为键写入元数据；已存在时更新文件名、路径和表格数据，不覆盖摘要。
	Upsert(ctx context.Context, doc *model.Document) error
	// FindByHash 查询文档，不存在时返回 (nil, nil)。
	FindByHash(ctx context.Context, hash string) (*model.Document, error)
	UpdateSummary(ctx context.Context, hash, summary string) error
	MarkIndexed(ctx context.Context, hash string, chunkCount int) error
	UpdateStatus(ctx context.Context, hash, status string) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Upsert(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_name", "table_data", "text_path", "blob_path", "vector_namespace", "updated_at"}),
	}).Create(doc).Error
}

func (r *documentRepository) FindByHash(ctx context.Context, hash string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) UpdateSummary(ctx context.Context, hash, summary string) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).Where("hash = ?", hash).Update("summary", summary).Error
}

func (r *documentRepository) MarkIndexed(ctx context.Context, hash string, chunkCount int) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).Where("hash = ?", hash).Updates(map[string]any{
		"status":      model.DocumentStatusIndexed,
		"chunk_count": chunkCount,
	}).Error
}

func (r *documentRepository) UpdateStatus(ctx context.Context, hash, status string) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).Where("hash = ?", hash).Update("status", status).Error
}

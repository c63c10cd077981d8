// Package model 定义了与数据库表对应的 Go 结构体，以及流水线中传递的数据类型。
package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 文档处理状态
const (
	DocumentStatusExtracted = "extracted"
	DocumentStatusIndexed   = "indexed"
	DocumentStatusFailed    = "failed"
)

// Document 定义了 documents 表的 ORM 模型。
// 以内容指纹为主键，一份内容只有一行记录，无论上传多少次、用什么文件名。
type Document struct {
	Hash            string         `gorm:"primaryKey;type:char(64)" json:"hash"`
	FileName        string         `gorm:"type:varchar(255);not null" json:"fileName"`
	Summary         string         `gorm:"type:text" json:"summary"`
	TableData       datatypes.JSON `gorm:"type:json" json:"tableData,omitempty"`
	TextPath        string         `gorm:"type:varchar(255)" json:"textPath"`
	BlobPath        string         `gorm:"type:varchar(255)" json:"blobPath"`
	VectorNamespace string         `gorm:"type:varchar(64)" json:"vectorNamespace"`
	ChunkCount      int            `gorm:"not null;default:0" json:"chunkCount"`
	Status          string         `gorm:"type:varchar(20);not null;default:'extracted'" json:"status"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"-"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// DocumentDTO 是返回给客户端的文档元数据，不包含全文。
type DocumentDTO struct {
	Hash            string    `json:"hash"`
	FileName        string    `json:"fileName"`
	Summary         string    `json:"summary"`
	TableCount      int       `json:"tableCount"`
	VectorNamespace string    `json:"vectorNamespace"`
	ChunkCount      int       `json:"chunkCount"`
	Status          string    `json:"status"`
	DownloadURL     string    `json:"downloadUrl,omitempty"`
	CreatedAt       LocalTime `json:"createdAt"`
	UpdatedAt       LocalTime `json:"updatedAt"`
}

// ToDTO 把数据库记录转换为 DocumentDTO。
func (d *Document) ToDTO() DocumentDTO {
	var tables []json.RawMessage
	_ = json.Unmarshal(d.TableData, &tables)
	return DocumentDTO{
		Hash:            d.Hash,
		FileName:        d.FileName,
		Summary:         d.Summary,
		TableCount:      len(tables),
		VectorNamespace: d.VectorNamespace,
		ChunkCount:      d.ChunkCount,
		Status:          d.Status,
		CreatedAt:       LocalTime(d.CreatedAt),
		UpdatedAt:       LocalTime(d.UpdatedAt),
	}
}

// Table 是从 OCR 块图中重建出的一张表格。
// Rows 总是矩形的：每一行长度相同，缺失的单元格为空字符串。
type Table struct {
	Page int        `json:"page"`
	Rows [][]string `json:"table"`
}

// ExtractedDocument 是一份文档的结构化抽取结果，按指纹缓存，创建后不再修改。
type ExtractedDocument struct {
	Fingerprint string  `json:"-"`
	Text        string  `json:"text"`
	Tables      []Table `json:"tables"`
}

package repository

import (
	"bytes"
	"context"
	"docqa-go/internal/model"
	"docqa-go/pkg/log"
	"docqa-go/pkg/storage"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema 描述缓存对象的格式: {text, tables:[{page, table:[[string]]}]}
const extractionSchema = `{
	"type": "object",
	"required": ["text", "tables"],
	"properties": {
		"text": {"type": "string"},
		"tables": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["page", "table"],
				"properties": {
					"page": {"type": "integer", "minimum": 1},
					"table": {
						"type": "array",
						"items": {"type": "array", "items": {"type": "string"}}
					}
				}
			}
		}
	}
}`

// ExtractionCache 按内容指纹缓存结构化抽取结果。
type ExtractionCache interface {
	// Get 返回缓存的抽取结果，未命中（或对象损坏）时返回 (nil, nil)。
	Get(ctx context.Context, fingerprint string) (*model.ExtractedDocument, error)
	// Put 写入抽取结果，同一指纹后写覆盖先写。
	Put(ctx context.Context, doc *model.ExtractedDocument) error
}

type extractionRepository struct {
	store  storage.ObjectStore
	schema *jsonschema.Schema
}

// NewExtractionRepository 创建一个基于对象存储的 ExtractionCache。
func NewExtractionRepository(store storage.ObjectStore) (ExtractionCache, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader([]byte(extractionSchema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &extractionRepository{store: store, schema: schema}, nil
}

// ExtractionKey 返回抽取结果在对象存储中的路径。
func ExtractionKey(fingerprint string) string {
	return "extracted/" + fingerprint + ".json"
}

func (r *extractionRepository) Get(ctx context.Context, fingerprint string) (*model.ExtractedDocument, error) {
	key := ExtractionKey(fingerprint)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	data, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warnw("[ExtractionCache] 缓存对象不是合法 JSON，视为未命中", "key", key, "error", err)
		return nil, nil
	}
	if err := r.schema.Validate(raw); err != nil {
		log.Warnw("[ExtractionCache] 缓存对象不符合格式，视为未命中", "key", key, "error", err)
		return nil, nil
	}

	var doc model.ExtractedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode extraction %s: %w", key, err)
	}
	doc.Fingerprint = fingerprint
	if doc.Tables == nil {
		doc.Tables = []model.Table{}
	}
	return &doc, nil
}

func (r *extractionRepository) Put(ctx context.Context, doc *model.ExtractedDocument) error {
	if doc.Fingerprint == "" {
		return errors.New("extraction has no fingerprint")
	}
	tables := doc.Tables
	if tables == nil {
		tables = []model.Table{}
	}
	for i := range tables {
		if tables[i].Rows == nil {
			tables[i].Rows = [][]string{}
		}
	}
	data, err := json.Marshal(model.ExtractedDocument{Text: doc.Text, Tables: tables})
	if err != nil {
		return fmt.Errorf("encode extraction: %w", err)
	}
	return r.store.Put(ctx, ExtractionKey(doc.Fingerprint), data, "application/json")
}

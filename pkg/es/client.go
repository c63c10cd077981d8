// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"docqa-go/internal/config"
	"docqa-go/pkg/log"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Client 封装了 Elasticsearch 客户端。
type Client struct {
	es *elasticsearch.Client
}

// NewClient 初始化 Elasticsearch 客户端
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{es: client}, nil
}

// EnsureIndex 检查索引是否存在，如果不存在则用给定的 mapping 创建它
func (c *Client) EnsureIndex(ctx context.Context, indexName, mapping string) error {
	res, err := c.es.Indices.Exists([]string{indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	if res.Body != nil {
		res.Body.Close()
	}
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
	}
	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// Count 返回匹配查询的文档数量。
func (c *Client) Count(ctx context.Context, indexName string, query map[string]any) (int64, error) {
	body, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return 0, err
	}
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(indexName),
		c.es.Count.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return 0, fmt.Errorf("count request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("count returned error: %s", res.String())
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return out.Count, nil
}

// BulkItem 是一条待写入的文档。
type BulkItem struct {
	ID  string
	Doc any
}

// Bulk 批量写入文档，refresh=wait_for 保证返回后即可被检索。
// 任何一条失败都视为整批失败。
func (c *Client) Bulk(ctx context.Context, indexName string, items []BulkItem) error {
	if len(items) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		meta := map[string]any{"index": map[string]any{"_index": indexName, "_id": item.ID}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(item.Doc); err != nil {
			return err
		}
	}

	req := esapi.BulkRequest{
		Index:   indexName,
		Body:    &buf,
		Refresh: "wait_for",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk returned error: %s", res.String())
	}

	var out struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if out.Errors {
		for _, item := range out.Items {
			for _, r := range item {
				if r.Status >= 300 {
					return fmt.Errorf("bulk item failed: %s: %s", r.Error.Type, r.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk reported errors")
	}
	return nil
}

// Hit 是搜索结果中的一条命中。
type Hit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// Search 执行一次搜索并返回命中列表（按得分降序）。
func (c *Client) Search(ctx context.Context, indexName string, body map[string]any) ([]Hit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indexName),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search returned error [%d]: %s", res.StatusCode, string(raw))
	}

	var out struct {
		Hits struct {
			Hits []Hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Hits.Hits, nil
}

// Ping 检查集群是否可达。
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping returned %s", res.Status())
	}
	return nil
}

// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AWS           AWSConfig           `mapstructure:"aws"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	RAG           RAGConfig           `mapstructure:"rag"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// MaxDocumentBytes 限制下载或上传的单个文档大小。
	MaxDocumentBytes int64         `mapstructure:"max_document_bytes"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 存储 API 访问令牌相关的配置。Enabled 为 false 时不校验令牌。
type AuthConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Brokers     string `mapstructure:"brokers"`
	Topic       string `mapstructure:"topic"`
	GroupID     string `mapstructure:"group_id"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// MinIOConfig 存储对象存储的配置。Textract 通过同一个 bucket 读取文档，
// 因此生产环境中 Endpoint 指向 S3（s3.amazonaws.com）。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
}

// AWSConfig 存储 AWS SDK 的凭证与区域。
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// OCRConfig 控制文档结构化抽取。Provider 取值 textract 或 tika。
type OCRConfig struct {
	Provider     string        `mapstructure:"provider"`
	Features     []string      `mapstructure:"features"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
	Dims      int    `mapstructure:"dims"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	MaxRetries int                 `mapstructure:"max_retries"`
	RateLimit  LLMRateLimitConfig  `mapstructure:"rate_limit"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMRateLimitConfig 限制对生成服务的调用速率，0 表示不限流。
type LLMRateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RAGConfig 配置分块、索引、检索和问答流程。
type RAGConfig struct {
	ChunkSize    int              `mapstructure:"chunk_size"`
	ChunkOverlap int              `mapstructure:"chunk_overlap"`
	BatchSize    int              `mapstructure:"batch_size"`
	TopK         int              `mapstructure:"top_k"`
	Concurrency  int              `mapstructure:"concurrency"`
	IndexTables  bool             `mapstructure:"index_tables"`
	SummaryChars int              `mapstructure:"summary_chars"`
	SummaryTTL   time.Duration    `mapstructure:"summary_ttl"`
	Placeholder  string           `mapstructure:"placeholder"`
	Rewrite      RAGRewriteConfig `mapstructure:"rewrite"`
	Prompt       RAGPromptConfig  `mapstructure:"prompt"`
}

// RAGRewriteConfig 控制两个问题改写阶段是否启用。
type RAGRewriteConfig struct {
	Disambiguate bool `mapstructure:"disambiguate"`
	Simplify     bool `mapstructure:"simplify"`
}

// RAGPromptConfig 存储提示词模板，模板中使用 {question}、{context} 等占位符，为空时使用内置模板。
type RAGPromptConfig struct {
	Answer       string `mapstructure:"answer"`
	Disambiguate string `mapstructure:"disambiguate"`
	Simplify     string `mapstructure:"simplify"`
	Summary      string `mapstructure:"summary"`
}

// Load 从指定路径读取 YAML 配置，并允许 DOCQA_ 前缀的环境变量覆盖（例如 DOCQA_LLM_API_KEY）。
// 当前目录下存在 .env 时会先加载它。
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 布尔值与允许为 0 的字段无法在 ApplyDefaults 中区分"未配置"，在此设置默认值。
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.index_tables", true)
	v.SetDefault("rag.rewrite.simplify", true)
	v.SetDefault("ocr.max_retries", 3)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Init 初始化全局配置 Conf，失败时直接 panic（仅供 main 使用）。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// ApplyDefaults 为未配置的字段填充默认值。
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.MaxDocumentBytes <= 0 {
		cfg.Server.MaxDocumentBytes = 50 << 20
	}
	if cfg.Server.DownloadTimeout <= 0 {
		cfg.Server.DownloadTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 10 * time.Minute
	}
	if cfg.Auth.TokenExpireHours <= 0 {
		cfg.Auth.TokenExpireHours = 24 * 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "docqa-ingest"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "docqa-ingest-consumer"
	}
	if cfg.Kafka.MaxAttempts <= 0 {
		cfg.Kafka.MaxAttempts = 3
	}
	if cfg.OCR.Provider == "" {
		cfg.OCR.Provider = "textract"
	}
	if len(cfg.OCR.Features) == 0 {
		cfg.OCR.Features = []string{"TABLES", "FORMS"}
	}
	if cfg.OCR.PollInterval <= 0 {
		cfg.OCR.PollInterval = 5 * time.Second
	}
	if cfg.OCR.Timeout <= 0 {
		cfg.OCR.Timeout = 300 * time.Second
	}
	if cfg.OCR.MaxRetries < 0 {
		cfg.OCR.MaxRetries = 0
	}
	if cfg.Elasticsearch.IndexName == "" {
		cfg.Elasticsearch.IndexName = "document_chunks"
	}
	if cfg.Elasticsearch.Dims <= 0 {
		cfg.Elasticsearch.Dims = cfg.Embedding.Dimensions
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxRetries <= 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize / 5
	}
	if cfg.RAG.BatchSize <= 0 {
		cfg.RAG.BatchSize = 96
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.Concurrency <= 0 {
		cfg.RAG.Concurrency = 4
	}
	if cfg.RAG.SummaryChars <= 0 {
		cfg.RAG.SummaryChars = 12000
	}
	if cfg.RAG.SummaryTTL <= 0 {
		cfg.RAG.SummaryTTL = 7 * 24 * time.Hour
	}
	if cfg.RAG.Placeholder == "" {
		cfg.RAG.Placeholder = "Unable to answer this question from the document."
	}
}

package domain

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// SnapshotBackend selects where snapshot artifacts are written.
type SnapshotBackend string

// Available snapshot backends.
const (
	SnapshotBackendLocal SnapshotBackend = "local"
	SnapshotBackendS3    SnapshotBackend = "s3"
	SnapshotBackendMinIO SnapshotBackend = "minio"
)

// IsValid returns true if the backend is recognised.
func (b SnapshotBackend) IsValid() bool {
	switch b {
	case SnapshotBackendLocal, SnapshotBackendS3, SnapshotBackendMinIO:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b SnapshotBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b SnapshotBackend) Description() string {
	switch b {
	case SnapshotBackendLocal:
		return "Local file"
	case SnapshotBackendS3:
		return "Amazon S3"
	case SnapshotBackendMinIO:
		return "MinIO (S3 compatible)"
	default:
		return unknownDescription
	}
}

// Compression selects the snapshot artifact codec.
type Compression string

// Available compression codecs.
const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// IsValid returns true if the codec is recognised.
func (c Compression) IsValid() bool {
	switch c {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c Compression) String() string {
	return string(c)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's vector size. Zero uses the model default.
	Dimensions int

	// BatchSize is the number of chunks sent per embedding request.
	BatchSize int

	// Concurrency bounds in-flight embedding requests per document.
	Concurrency int

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ChunkingSettings bounds chunk sizes, measured in whitespace tokens.
type ChunkingSettings struct {
	MaxTokens int
	Overlap   int

	// Processors is the ordered post-processor pipeline. It must start with
	// a processor that creates chunks.
	Processors []string
}

// RankingSettings configures freshness re-ranking.
type RankingSettings struct {
	// MaxAgeDays is the age at which the freshness penalty saturates.
	MaxAgeDays float64

	// AgeWeight is the maximum fractional penalty for old documents.
	AgeWeight float64

	// Overfetch multiplies k when fetching candidates from the index.
	Overfetch int
}

// SnapshotSettings configures snapshot persistence.
type SnapshotSettings struct {
	Backend     SnapshotBackend
	Name        string
	Compression Compression

	// Dir is the artifact directory for the local backend.
	Dir string

	// Bucket, Prefix, Region, Endpoint, AccessKey, SecretKey and UseSSL
	// configure the object store backends.
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// StorageSettings locates the document store.
type StorageSettings struct {
	// DataDir holds the SQLite database. Empty uses ~/.recall/data.
	DataDir string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	Chunking  ChunkingSettings
	Ranking   RankingSettings
	Snapshot  SnapshotSettings
	Storage   StorageSettings
	Scheduler SchedulerConfig
}

// Default tuning values.
const (
	DefaultMaxTokens    = 512
	DefaultOverlap      = 128
	DefaultMaxAgeDays   = 1825
	DefaultAgeWeight    = 0.3
	DefaultOverfetch    = 2
	DefaultBatchSize    = 64
	DefaultConcurrency  = 4
	DefaultSnapshotName = "index-snapshot.json"
)

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:    AIProviderOpenAI,
			Model:       DefaultEmbeddingModels()[AIProviderOpenAI],
			BatchSize:   DefaultBatchSize,
			Concurrency: DefaultConcurrency,
		},
		Chunking: ChunkingSettings{
			MaxTokens:  DefaultMaxTokens,
			Overlap:    DefaultOverlap,
			Processors: []string{"chunker"},
		},
		Ranking: RankingSettings{
			MaxAgeDays: DefaultMaxAgeDays,
			AgeWeight:  DefaultAgeWeight,
			Overfetch:  DefaultOverfetch,
		},
		Snapshot: SnapshotSettings{
			Backend:     SnapshotBackendLocal,
			Name:        DefaultSnapshotName,
			Compression: CompressionNone,
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

package services

import (
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDims        = "embedding.dimensions"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedConcurrency = "embedding.concurrency"
	keyEmbedRPS         = "embedding.requests_per_second"
	keyChunkMaxTokens   = "chunking.max_tokens"
	keyChunkOverlap     = "chunking.overlap"
	keyChunkProcessors  = "chunking.processors"
	keyRankMaxAgeDays   = "ranking.max_age_days"
	keyRankAgeWeight    = "ranking.age_weight"
	keyRankOverfetch    = "ranking.overfetch"
	keySnapBackend      = "snapshot.backend"
	keySnapName         = "snapshot.name"
	keySnapCompression  = "snapshot.compression"
	keySnapDir          = "snapshot.dir"
	keySnapBucket       = "snapshot.bucket"
	keySnapPrefix       = "snapshot.prefix"
	keySnapRegion       = "snapshot.region"
	keySnapEndpoint     = "snapshot.endpoint"
	keySnapAccessKey    = "snapshot.access_key"
	keySnapSecretKey    = "snapshot.secret_key"
	keySnapUseSSL       = "snapshot.use_ssl"
	keyStorageDataDir   = "storage.data_dir"
	keySchedulerEnabled = "scheduler.enabled"
)

// defaultOllamaURL is used when Ollama is selected without a base URL.
const defaultOllamaURL = "http://localhost:11434"

// envOpenAIKey is consulted when no API key is configured.
const envOpenAIKey = "OPENAI_API_KEY"

// schedulerTaskKeys maps task IDs to their TOML table names.
var schedulerTaskKeys = map[string]string{
	domain.TaskIDSnapshotSave: "snapshot_save",
	domain.TaskIDRetryFailed:  "retry_failed",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	provider := s.getProvider(defaults.Embedding.Provider)
	model := s.configStore.GetString(keyEmbedModel)
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	apiKey := s.configStore.GetString(keyEmbedAPIKey)
	if apiKey == "" && provider == domain.AIProviderOpenAI {
		apiKey = s.getenv(envOpenAIKey)
	}
	dims := s.getInt(keyEmbedDims, 0)
	if dims == 0 {
		dims = domain.EmbeddingDimensions()[model]
	}

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          provider,
			Model:             model,
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            apiKey,
			Dimensions:        dims,
			BatchSize:         s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
			Concurrency:       s.getInt(keyEmbedConcurrency, defaults.Embedding.Concurrency),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, 0),
		},
		Chunking: domain.ChunkingSettings{
			MaxTokens:  s.getInt(keyChunkMaxTokens, defaults.Chunking.MaxTokens),
			Overlap:    s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
			Processors: s.getStringSlice(keyChunkProcessors, defaults.Chunking.Processors),
		},
		Ranking: domain.RankingSettings{
			MaxAgeDays: s.getFloat(keyRankMaxAgeDays, defaults.Ranking.MaxAgeDays),
			AgeWeight:  s.getFloat(keyRankAgeWeight, defaults.Ranking.AgeWeight),
			Overfetch:  s.getInt(keyRankOverfetch, defaults.Ranking.Overfetch),
		},
		Snapshot: domain.SnapshotSettings{
			Backend:     domain.SnapshotBackend(s.getString(keySnapBackend, defaults.Snapshot.Backend.String())),
			Name:        s.getString(keySnapName, defaults.Snapshot.Name),
			Compression: domain.Compression(s.getString(keySnapCompression, defaults.Snapshot.Compression.String())),
			Dir:         s.configStore.GetString(keySnapDir),
			Bucket:      s.configStore.GetString(keySnapBucket),
			Prefix:      s.configStore.GetString(keySnapPrefix),
			Region:      s.configStore.GetString(keySnapRegion),
			Endpoint:    s.configStore.GetString(keySnapEndpoint),
			AccessKey:   s.configStore.GetString(keySnapAccessKey),
			SecretKey:   s.configStore.GetString(keySnapSecretKey),
			UseSSL:      s.getBool(keySnapUseSSL, true),
		},
		Storage: domain.StorageSettings{
			DataDir: s.configStore.GetString(keyStorageDataDir),
		},
		Scheduler: s.GetSchedulerConfig(),
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedConcurrency, settings.Embedding.Concurrency},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyChunkMaxTokens, settings.Chunking.MaxTokens},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyChunkProcessors, settings.Chunking.Processors},
		{keyRankMaxAgeDays, settings.Ranking.MaxAgeDays},
		{keyRankAgeWeight, settings.Ranking.AgeWeight},
		{keyRankOverfetch, settings.Ranking.Overfetch},
		{keySnapBackend, settings.Snapshot.Backend.String()},
		{keySnapName, settings.Snapshot.Name},
		{keySnapCompression, settings.Snapshot.Compression.String()},
		{keySnapDir, settings.Snapshot.Dir},
		{keySnapBucket, settings.Snapshot.Bucket},
		{keySnapPrefix, settings.Snapshot.Prefix},
		{keySnapRegion, settings.Snapshot.Region},
		{keySnapEndpoint, settings.Snapshot.Endpoint},
		{keySnapUseSSL, settings.Snapshot.UseSSL},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set, so env-provided keys never land on disk.
	secrets := []struct {
		key   string
		value string
	}{
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keySnapAccessKey, settings.Snapshot.AccessKey},
		{keySnapSecretKey, settings.Snapshot.SecretKey},
	}
	for _, v := range secrets {
		if v.value == "" || (v.key == keyEmbedAPIKey && v.value == s.getenv(envOpenAIKey)) {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(envOpenAIKey) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Set base URL based on provider type
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// Update vector dimensions based on model
	settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]

	return s.Save(settings)
}

// SetSnapshotBackend configures where snapshots are written.
func (s *SettingsService) SetSnapshotBackend(backend domain.SnapshotBackend, compression domain.Compression) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid snapshot backend: %s", backend)
	}
	if compression == "" {
		compression = domain.CompressionNone
	}
	if !compression.IsValid() {
		return fmt.Errorf("invalid snapshot compression: %s", compression)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Snapshot.Backend = backend
	settings.Snapshot.Compression = compression
	return s.Save(settings)
}

// Validate checks that current settings are consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider))
	}
	if settings.Chunking.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("chunking.max_tokens must be positive, got %d", settings.Chunking.MaxTokens))
	}
	if settings.Chunking.Overlap < 0 {
		errs = append(errs, fmt.Errorf("chunking.overlap must not be negative, got %d", settings.Chunking.Overlap))
	}
	if settings.Ranking.MaxAgeDays <= 0 {
		errs = append(errs, fmt.Errorf("ranking.max_age_days must be positive, got %v", settings.Ranking.MaxAgeDays))
	}
	if settings.Ranking.AgeWeight < 0 || settings.Ranking.AgeWeight > 1 {
		errs = append(errs, fmt.Errorf("ranking.age_weight must be within [0, 1], got %v", settings.Ranking.AgeWeight))
	}
	if !settings.Snapshot.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("invalid snapshot backend: %s", settings.Snapshot.Backend))
	}
	if !settings.Snapshot.Compression.IsValid() {
		errs = append(errs, fmt.Errorf("invalid snapshot compression: %s", settings.Snapshot.Compression))
	}
	if settings.Snapshot.Backend != domain.SnapshotBackendLocal && settings.Snapshot.Bucket == "" {
		errs = append(errs, fmt.Errorf("snapshot backend %s requires snapshot.bucket", settings.Snapshot.Backend))
	}
	if settings.Snapshot.Backend == domain.SnapshotBackendMinIO && settings.Snapshot.Endpoint == "" {
		errs = append(errs, errors.New("snapshot backend minio requires snapshot.endpoint"))
	}

	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get(keySchedulerEnabled); exists {
		defaults.Enabled = s.configStore.GetBool(keySchedulerEnabled)
	}

	for taskID, configKey := range schedulerTaskKeys {
		prefix := "scheduler." + configKey + "."

		taskCfg := defaults.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}

		if d := s.configStore.GetDuration(prefix + "interval"); d > 0 {
			taskCfg.Interval = d
		}

		defaults.TaskConfigs[taskID] = taskCfg
	}

	return defaults
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if val := s.configStore.GetStringSlice(key); len(val) > 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	p := domain.AIProvider(s.configStore.GetString(keyEmbedProvider))
	if p.IsValid() {
		return p
	}
	return defaultVal
}

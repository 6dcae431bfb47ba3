package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `Show the effective configuration, or change the embedding provider and
snapshot backend interactively. Values come from ~/.recall/config.toml and
RECALL_* environment variables, which take precedence.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long: `Choose the embedding provider and model, then check that the provider
answers.

A different provider or model means a different vector space: run
'recall index --all' afterwards.`,
	RunE: runSettingsEmbedding,
}

var settingsSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Configure snapshot backend",
	Long: `Choose where index snapshots are written and how they are compressed.

Backends:
  local  a file under ~/.recall/snapshots
  s3     an Amazon S3 bucket
  minio  a MinIO or other S3 compatible server`,
	RunE: runSettingsSnapshot,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsSnapshotCmd)
	rootCmd.AddCommand(settingsCmd)
}

// section is one bracketed block of `settings show` output.
type section struct {
	title string
	rows  [][2]string
}

func (s *section) add(label, format string, args ...any) {
	s.rows = append(s.rows, [2]string{label, fmt.Sprintf(format, args...)})
}

func (s *section) print(cmd *cobra.Command) {
	cmd.Println(headingStyle.Render("[" + s.title + "]"))
	for _, r := range s.rows {
		cmd.Printf("  %s: %s\n", r[0], r[1])
	}
	cmd.Println()
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(headingStyle.Render("Current Settings"))
	cmd.Println()
	for _, s := range describeSettings(settings) {
		s.print(cmd)
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("%s %v\n", warnStyle.Render("Warning:"), err)
		cmd.Println("Run 'recall settings embedding' or 'recall settings snapshot' to fix it.")
		return nil
	}
	cmd.Println("Configuration is valid.")
	return nil
}

func describeSettings(settings *domain.AppSettings) []*section {
	emb := settings.Embedding
	embedding := &section{title: "Embedding"}
	embedding.add("Provider", "%s", emb.Provider.Description())
	embedding.add("Model", "%s", emb.Model)
	if emb.BaseURL != "" {
		embedding.add("Base URL", "%s", emb.BaseURL)
	}
	if emb.Provider.RequiresAPIKey() {
		key := "(not set)"
		if emb.APIKey != "" {
			key = maskAPIKey(emb.APIKey)
		}
		embedding.add("API Key", "%s", key)
	}
	if emb.Dimensions > 0 {
		embedding.add("Dimensions", "%d", emb.Dimensions)
	}
	embedding.add("Batch size", "%d", emb.BatchSize)
	embedding.add("Concurrency", "%d", emb.Concurrency)
	if emb.RequestsPerSecond > 0 {
		embedding.add("Rate limit", "%.1f req/s", emb.RequestsPerSecond)
	}
	if emb.IsConfigured() {
		embedding.add("Status", "configured")
	} else {
		embedding.add("Status", "%s", warnStyle.Render("not configured"))
	}

	chunking := &section{title: "Chunking"}
	chunking.add("Max tokens", "%d", settings.Chunking.MaxTokens)
	chunking.add("Overlap", "%d", settings.Chunking.Overlap)
	chunking.add("Processors", "%s", strings.Join(settings.Chunking.Processors, ", "))

	ranking := &section{title: "Ranking"}
	ranking.add("Max age", "%.0f days", settings.Ranking.MaxAgeDays)
	ranking.add("Age weight", "%.2f", settings.Ranking.AgeWeight)
	ranking.add("Overfetch", "%dx", settings.Ranking.Overfetch)

	snap := settings.Snapshot
	snapshot := &section{title: "Snapshot"}
	snapshot.add("Backend", "%s", snap.Backend.Description())
	snapshot.add("Name", "%s", snap.Name)
	snapshot.add("Compression", "%s", snap.Compression)
	if snap.Backend == domain.SnapshotBackendLocal {
		if snap.Dir != "" {
			snapshot.add("Directory", "%s", snap.Dir)
		}
	} else {
		snapshot.add("Bucket", "%s", snap.Bucket)
		for _, r := range [][2]string{{"Prefix", snap.Prefix}, {"Region", snap.Region}, {"Endpoint", snap.Endpoint}} {
			if r[1] != "" {
				snapshot.add(r[0], "%s", r[1])
			}
		}
		if snap.AccessKey != "" {
			snapshot.add("Access Key", "%s", maskAPIKey(snap.AccessKey))
		}
	}

	sched := &section{title: "Scheduler"}
	sched.add("Enabled", "%t", settings.Scheduler.Enabled)
	for _, id := range []string{domain.TaskIDSnapshotSave, domain.TaskIDRetryFailed} {
		tc := settings.Scheduler.GetTaskConfig(id)
		if tc.Enabled {
			sched.add(id, "every %s", tc.Interval)
		} else {
			sched.add(id, "off")
		}
	}

	return []*section{embedding, chunking, ranking, snapshot, sched}
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureEmbedding(newPrompter(cmd))
}

func runSettingsSnapshot(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureSnapshot(newPrompter(cmd))
}

func configureEmbedding(p *prompter) error {
	providers := domain.AllEmbeddingProviders()
	labels := make([]string, len(providers))
	for i, pr := range providers {
		labels[i] = pr.Description()
	}
	provider := providers[p.choose("Select Embedding Provider", labels)]
	model := p.line("Model name", domain.DefaultEmbeddingModels()[provider])

	var apiKey string
	if provider.RequiresAPIKey() {
		if apiKey = p.secret("API key"); apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	p.cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		p.cmd.Printf("%s: %v\n", warnStyle.Render("FAILED"), err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	p.cmd.Println(scoreStyle.Render("OK"))

	p.cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), model)
	return nil
}

func configureSnapshot(p *prompter) error {
	backends := []domain.SnapshotBackend{
		domain.SnapshotBackendLocal,
		domain.SnapshotBackendS3,
		domain.SnapshotBackendMinIO,
	}
	labels := make([]string, len(backends))
	for i, b := range backends {
		labels[i] = b.Description()
	}
	backend := backends[p.choose("Select Snapshot Backend", labels)]

	codecs := []domain.Compression{domain.CompressionNone, domain.CompressionZstd, domain.CompressionLZ4}
	names := make([]string, len(codecs))
	for i, c := range codecs {
		names[i] = c.String()
	}
	compression := codecs[p.choose("Select Compression", names)]

	if err := settingsService.SetSnapshotBackend(backend, compression); err != nil {
		return fmt.Errorf("failed to configure snapshot backend: %w", err)
	}

	if backend != domain.SnapshotBackendLocal {
		if err := configureBucket(p, backend); err != nil {
			return err
		}
	}

	if err := settingsService.Validate(); err != nil {
		p.cmd.Printf("%s %v\n", warnStyle.Render("Warning:"), err)
	}
	p.cmd.Printf("Snapshot backend configured: %s (%s)\n", backend.Description(), compression)
	return nil
}

// configureBucket asks for the object store location and credentials. A
// blank access key leaves credentials to the SDK's environment lookup.
func configureBucket(p *prompter, backend domain.SnapshotBackend) error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	snap := &settings.Snapshot
	snap.Bucket = p.line("Bucket", snap.Bucket)
	snap.Prefix = p.line("Key prefix", snap.Prefix)
	snap.Region = p.line("Region", snap.Region)
	snap.Endpoint = p.line("Endpoint", snap.Endpoint)
	if backend == domain.SnapshotBackendMinIO {
		snap.UseSSL = p.line("Use TLS (y/n)", yesNo(snap.UseSSL)) == "y"
	}
	if ak := p.line("Access key (blank to use the environment)", ""); ak != "" {
		snap.AccessKey = ak
		snap.SecretKey = p.secret("Secret key")
	}

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save snapshot settings: %w", err)
	}
	return nil
}

// prompter reads answers line by line from the command's input.
type prompter struct {
	cmd *cobra.Command
	raw io.Reader
	in  *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	raw := cmd.InOrStdin()
	return &prompter{cmd: cmd, raw: raw, in: bufio.NewReader(raw)}
}

func (p *prompter) read() string {
	s, _ := p.in.ReadString('\n') //nolint:errcheck // EOF reads as an empty answer
	return strings.TrimSpace(s)
}

// line asks for a value; a blank answer keeps current.
func (p *prompter) line(label, current string) string {
	if current != "" {
		p.cmd.Printf("%s [%s]: ", label, current)
	} else {
		p.cmd.Printf("%s: ", label)
	}
	if v := p.read(); v != "" {
		return v
	}
	return current
}

// choose lists options and returns the index picked, defaulting to the first.
func (p *prompter) choose(title string, options []string) int {
	p.cmd.Println(title)
	for i, o := range options {
		p.cmd.Printf("  %d. %s\n", i+1, o)
	}
	p.cmd.Print("\nEnter choice [1]: ")
	return parseChoice(p.read(), len(options), 1) - 1
}

// secret reads without echo when input is a terminal.
func (p *prompter) secret(label string) string {
	p.cmd.Printf("%s: ", label)
	defer p.cmd.Println()
	if f, ok := p.raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if b, err := term.ReadPassword(int(f.Fd())); err == nil {
			return string(b)
		}
	}
	return p.read()
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// parseChoice returns the 1-based choice in input, or defaultVal when the
// input is blank or out of range.
func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

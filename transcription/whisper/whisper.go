// Package whisper is the client for a faster-whisper HTTP sidecar exposing
// POST /transcribe. Responses are requested as verbose_json.
package whisper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/httpclient"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
	"github.com/kbukum/diarkit/transcription"
)

const (
	ProviderName = "whisper"
	Adapter      = "verbose_json"

	defaultURL     = "http://localhost:8387"
	defaultModel   = "base"
	defaultTimeout = 120 * time.Second
)

// Config configures the sidecar client.
type Config struct {
	httpclient.Config `yaml:",inline" mapstructure:",squash"`
	Model             string `yaml:"model" mapstructure:"model" json:"model"`
	Language          string `yaml:"language" mapstructure:"language" json:"language,omitempty"`
	WordTimestamps    bool   `yaml:"word_timestamps" mapstructure:"word_timestamps" json:"word_timestamps"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.Config.ApplyDefaults()
}

// Provider implements transcription.Provider.
type Provider struct {
	cfg    Config
	client *httpclient.Client
	log    *logger.Logger
}

// New creates the provider.
func New(cfg Config, opts ...httpclient.Option) (*Provider, error) {
	cfg.ApplyDefaults()
	log := logger.Get("whisper")
	opts = append([]httpclient.Option{httpclient.WithService(ProviderName), httpclient.WithLogger(log)}, opts...)
	client, err := httpclient.New(cfg.Config, opts...)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return &Provider{cfg: cfg, client: client, log: log}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.client.Health(ctx, "/health") == nil
}

// CheckHealth reports sidecar health.
func (p *Provider) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: ProviderName, Status: observability.HealthStatusUp,
		Details: map[string]string{"url": p.client.BaseURL(), "model": p.cfg.Model}}
	if err := p.client.Health(ctx, "/health"); err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
	}
	return h
}

// Transcribe uploads the audio file and returns the verbose_json payload.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, errors.InvalidInput("audio_path", err.Error())
	}

	fields := map[string]string{
		"model":           firstNonEmpty(req.Model, p.cfg.Model),
		"response_format": "verbose_json",
	}
	if lang := firstNonEmpty(req.Language, p.cfg.Language); lang != "" {
		fields["language"] = lang
	}
	if req.WordTimestamps || p.cfg.WordTimestamps {
		fields["timestamp_granularities"] = "word"
	}

	ctx, span := observability.StartStage(ctx, observability.SpanSidecar)
	started := time.Now()
	body, err := p.client.PostMultipart(ctx, "/transcribe", &httpclient.MultipartBody{
		Fields: fields,
		Files:  []httpclient.FileField{{FieldName: "audio", FileName: filepath.Base(req.AudioPath), Data: audio}},
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	p.log.WithContext(ctx).Info("transcript received", logger.Fields(
		"bytes", len(body),
		"model", fields["model"],
		logger.FieldDuration, time.Since(started).Milliseconds(),
	))
	return &transcription.Response{Format: Adapter, Payload: body}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

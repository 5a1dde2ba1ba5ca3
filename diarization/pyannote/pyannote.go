// Package pyannote is the client for the pyannote diarization sidecar.
//
// The sidecar accepts multipart POST /diarize with an "audio" file and
// optional speaker-count fields, and answers with
// {"segments":[{"speaker_id","start_time","end_time"}],"num_speakers":N}
// or {"error":"..."}.
package pyannote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kbukum/diarkit/diarization"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/httpclient"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
)

const (
	// ProviderName is the registry name.
	ProviderName = "pyannote"
	// Adapter is the normalize adapter for the sidecar payload.
	Adapter = "pyannote"

	defaultURL     = "http://localhost:8388"
	defaultTimeout = 300 * time.Second
)

// Config configures the sidecar client.
type Config struct {
	httpclient.Config `yaml:",inline" mapstructure:",squash"`
	NumSpeakers       int `yaml:"num_speakers" mapstructure:"num_speakers" json:"num_speakers" validate:"gte=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.Config.ApplyDefaults()
}

// Provider implements diarization.Provider.
type Provider struct {
	cfg    Config
	client *httpclient.Client
	log    *logger.Logger
}

// New creates the provider.
func New(cfg Config, opts ...httpclient.Option) (*Provider, error) {
	cfg.ApplyDefaults()
	log := logger.Get("pyannote")
	opts = append([]httpclient.Option{httpclient.WithService(ProviderName), httpclient.WithLogger(log)}, opts...)
	client, err := httpclient.New(cfg.Config, opts...)
	if err != nil {
		return nil, fmt.Errorf("pyannote: %w", err)
	}
	return &Provider{cfg: cfg, client: client, log: log}, nil
}

// Name returns ProviderName.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable probes GET /health.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.client.Health(ctx, "/health") == nil
}

// CheckHealth reports sidecar health.
func (p *Provider) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: ProviderName, Status: observability.HealthStatusUp,
		Details: map[string]string{"url": p.client.BaseURL()}}
	if err := p.client.Health(ctx, "/health"); err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
	}
	return h
}

// Diarize uploads the audio file and returns the sidecar payload.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, errors.InvalidInput("audio_path", err.Error())
	}

	fields := map[string]string{}
	numSpeakers := req.NumSpeakers
	if numSpeakers == 0 {
		numSpeakers = p.cfg.NumSpeakers
	}
	setPositive(fields, "num_speakers", numSpeakers)
	setPositive(fields, "min_speakers", req.MinSpeakers)
	setPositive(fields, "max_speakers", req.MaxSpeakers)
	if req.Language != "" {
		fields["language"] = req.Language
	}

	ctx, span := observability.StartStage(ctx, observability.SpanSidecar)
	started := time.Now()
	body, err := p.client.PostMultipart(ctx, "/diarize", &httpclient.MultipartBody{
		Fields: fields,
		Files:  []httpclient.FileField{{FieldName: "audio", FileName: filepath.Base(req.AudioPath), Data: audio}},
	})
	if err == nil {
		err = sidecarError(body)
	}
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	p.log.WithContext(ctx).Info("diarization received", logger.Fields(
		"bytes", len(body),
		logger.FieldDuration, time.Since(started).Milliseconds(),
	))
	return &diarization.Response{Format: Adapter, Payload: body}, nil
}

func setPositive(fields map[string]string, key string, v int) {
	if v > 0 {
		fields[key] = strconv.Itoa(v)
	}
}

// sidecarError surfaces {"error": "..."} bodies sent with status 200.
func sidecarError(body []byte) error {
	var probe struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &probe) == nil && probe.Error != "" {
		return errors.ExternalServiceError(ProviderName, fmt.Errorf("%s", probe.Error))
	}
	return nil
}

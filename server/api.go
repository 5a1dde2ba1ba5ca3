package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/diarkit/database"
	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
	"github.com/kbukum/diarkit/server/endpoint"
	"github.com/kbukum/diarkit/speakers"
	"github.com/kbukum/diarkit/storage"
	"github.com/kbukum/diarkit/validation"
)

// HeaderDegraded marks an export whose content differs from the turn timings.
const HeaderDegraded = "X-Diarkit-Degraded"

// API serves the /v1 transcript routes. Persistence and artifact storage
// are optional; without a repository only the stateless routes work.
type API struct {
	engine *engine.Engine
	repo   *database.Repository
	store  storage.Storage
	prefix string
	log    *logger.Logger
}

// APIOption customizes an API.
type APIOption func(*API)

// WithRepository enables the /v1/transcripts routes.
func WithRepository(r *database.Repository) APIOption {
	return func(a *API) { a.repo = r }
}

// WithStorage uploads the artifacts of every aligned run below prefix.
func WithStorage(s storage.Storage, prefix string) APIOption {
	return func(a *API) { a.store, a.prefix = s, prefix }
}

// WithAPILogger sets the handler logger.
func WithAPILogger(l *logger.Logger) APIOption {
	return func(a *API) { a.log = l }
}

// NewAPI creates the API around eng.
func NewAPI(eng *engine.Engine, opts ...APIOption) *API {
	a := &API{engine: eng, log: logger.Get("api")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register mounts the routes on r.
func (a *API) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/align", a.align)
	v1.POST("/speakers", a.previewSpeakers)

	t := v1.Group("/transcripts")
	t.GET("", a.listTranscripts)
	t.GET("/:id", a.getTranscript)
	t.GET("/:id/speakers", a.transcriptSpeakers)
	t.PUT("/:id/mapping", a.updateMapping)
	t.GET("/:id/export/:format", a.exportTranscript)
}

// RegisterDefaultEndpoints mounts GET /health and GET /version.
func (s *Server) RegisterDefaultEndpoints(service, version string, checkers ...observability.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(service, version, checkers...))
	s.engine.GET("/version", endpoint.Version())
}

func (a *API) align(c *gin.Context) {
	var req alignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("body", err.Error()).WithCause(err))
		return
	}
	if err := validation.Validate(&req); err != nil {
		RespondWithError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		RespondWithError(c, err)
		return
	}
	formats, err := export.ParseFormats(req.Formats)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	eng, err := a.engineFor(req.Options)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	res, err := eng.Run(ctx, in)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	artifacts, err := eng.Export(ctx, res, formats)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	keys, persisted, err := a.persist(ctx, res, artifacts)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	rejected := res.Rejected
	if rejected == nil {
		rejected = []*errors.AppError{}
	}
	RespondCreated(c, alignResponse{
		RunID:     res.RunID,
		Source:    res.Source,
		Speakers:  res.Speakers,
		Mapping:   speakers.Complete(res.Speakers, res.Mapping),
		Turns:     res.Turns,
		Rejected:  rejected,
		Stats:     res.Stats,
		Artifacts: artifactViews(artifacts, keys),
		Persisted: persisted,
	})
}

// engineFor returns the shared engine, or a derived one when the request
// overrides options.
func (a *API) engineFor(opts *alignOptions) (*engine.Engine, error) {
	if opts.empty() {
		return a.engine, nil
	}
	eng, err := a.engine.With(opts.apply(a.engine.Config()))
	if err != nil {
		return nil, errors.InvalidInput("options", err.Error())
	}
	return eng, nil
}

// persist stores artifacts and the transcript record when configured.
func (a *API) persist(ctx context.Context, res *engine.Result, artifacts []export.Artifact) ([]string, bool, error) {
	var keys []string
	if a.store != nil {
		var err error
		keys, err = storage.SaveArtifacts(ctx, a.store, a.prefix, res.RunID, artifacts)
		if err != nil {
			return nil, false, errors.ServiceUnavailable("artifact storage").WithCause(err)
		}
	}
	if a.repo == nil {
		return keys, false, nil
	}
	rec := database.NewRecord(res, artifacts)
	rec.Artifacts = keys
	if err := a.repo.Save(ctx, rec); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

func (a *API) previewSpeakers(c *gin.Context) {
	var req alignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("body", err.Error()).WithCause(err))
		return
	}
	if err := validation.Validate(&req); err != nil {
		RespondWithError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		RespondWithError(c, err)
		return
	}
	ids, err := a.engine.Speakers(c.Request.Context(), in)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, speakersResponse{Speakers: ids, Mapping: speakers.Complete(ids, in.Mapping)})
}

func (a *API) requireRepo(c *gin.Context) bool {
	if a.repo == nil {
		RespondWithError(c, errors.ServiceUnavailable("transcript store"))
		return false
	}
	return true
}

func (a *API) listTranscripts(c *gin.Context) {
	if !a.requireRepo(c) {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		RespondWithError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		RespondWithError(c, err)
		return
	}
	recs, err := a.repo.List(c.Request.Context(), database.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	out := make([]transcriptSummary, len(recs))
	for i, rec := range recs {
		out[i] = summarize(rec)
	}
	RespondOKWithMeta(c, out, &Meta{Limit: limit, Offset: offset, Count: len(out)})
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.InvalidInput(key, fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return n, nil
}

func (a *API) getTranscript(c *gin.Context) {
	if !a.requireRepo(c) {
		return
	}
	rec, err := a.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, rec)
}

func (a *API) transcriptSpeakers(c *gin.Context) {
	if !a.requireRepo(c) {
		return
	}
	rec, err := a.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, speakersResponse{ID: rec.ID, Speakers: rec.Speakers, Mapping: rec.Mapping})
}

// updateMapping takes the mapping object as the whole body. It can be sent
// any number of times; names always resolve from the raw ids.
func (a *API) updateMapping(c *gin.Context) {
	if !a.requireRepo(c) {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		RespondWithError(c, errors.InvalidInput("body", err.Error()).WithCause(err))
		return
	}
	m, err := speakers.ParseJSON(body)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	rec, err := a.repo.UpdateMapping(c.Request.Context(), c.Param("id"), m)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	requestLogger(c, a.log).Info("speaker mapping updated", logger.Fields(
		logger.FieldRunID, rec.ID,
		logger.FieldCount, len(m),
	))
	RespondOK(c, rec)
}

func (a *API) exportTranscript(c *gin.Context) {
	if !a.requireRepo(c) {
		return
	}
	f, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	rec, err := a.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	artifacts, err := a.engine.Export(c.Request.Context(), rec.Result(), []export.Format{f})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	art := artifacts[0]
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, art.Filename))
	if art.Report.Degraded {
		c.Header(HeaderDegraded, "true")
	}
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

// Package handlers exposes the analyzer operations over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eventanalyzer/internal/api/ratelimit"
	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/domain/prediction"
	"eventanalyzer/internal/lock"
	"eventanalyzer/internal/metrics"
	"eventanalyzer/internal/ml/classifier"
	"eventanalyzer/internal/services/analyzer"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// Analyzer is the service surface used by the routes
type Analyzer interface {
	Config() analyzer.Config
	RebuildEvent(ctx context.Context, eventName string, alg model.Algorithm, tag string) (string, error)
	InitAll(ctx context.Context, tag string, alg model.Algorithm) (*analyzer.BatchResult, error)
	TrainEvent(ctx context.Context, obs catalog.ObservationSet, eventName, sourceTag, targetTag string, alg model.Algorithm) (string, error)
	TrainEventRandomly(ctx context.Context, eventName, sourceTag, targetTag string, alg model.Algorithm, length, count int) (string, error)
	TrainAll(ctx context.Context, sourceTag, targetTag string, alg model.Algorithm) (*analyzer.BatchResult, error)
	PredictEvent(ctx context.Context, seq catalog.Sequence, tag string, alg model.Algorithm) (*classifier.Result, error)
	ListTags(ctx context.Context, alg model.Algorithm) ([]model.TagSummary, error)
	GetModel(ctx context.Context, alg model.Algorithm, tag, eventName string) (*model.Record, error)
	TopEvents(ctx context.Context, tag string, since time.Time) ([]prediction.EventCount, error)
}

var _ Analyzer = (*analyzer.Service)(nil)

// Config tunes the training guards
type Config struct {
	LockTTL      time.Duration
	MaxBodyBytes int64
}

// Handler serves the analyzer routes
type Handler struct {
	svc      Analyzer
	locker   lock.Locker
	limiters *ratelimit.MultiLimiter
	metrics  *metrics.Metrics
	cfg      Config
	log      *logger.Logger
}

// New creates the route handler. locker and limiters may be nil.
func New(svc Analyzer, locker lock.Locker, limiters *ratelimit.MultiLimiter, m *metrics.Metrics, cfg Config, log *logger.Logger) *Handler {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if limiters == nil {
		limiters = ratelimit.NewMultiLimiter()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Handler{
		svc:      svc,
		locker:   locker,
		limiters: limiters,
		metrics:  m,
		cfg:      cfg,
		log:      log.With("component", "api"),
	}
}

type routeFunc func(w http.ResponseWriter, r *http.Request) (interface{}, error)

// Register mounts every route on mux
func (h *Handler) Register(mux *http.ServeMux) {
	h.handle(mux, "POST /init/", h.rebuildEvent, "train")
	h.handle(mux, "POST /initAll/", h.initAll, "train", "batch")
	h.handle(mux, "POST /trainRandomly/", h.trainRandomly, "train")
	h.handle(mux, "POST /trainRandomlyAll/", h.trainRandomlyAll, "train", "batch")
	h.handle(mux, "POST /train/", h.train, "train")
	h.handle(mux, "POST /predict/", h.predict)

	h.handle(mux, "GET /tags/", h.listTags)
	h.handle(mux, "GET /models/", h.getModel)
	h.handle(mux, "GET /stats/", h.stats)
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn routeFunc, limits ...string) {
	_, route, _ := strings.Cut(pattern, " ")

	var next http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.limiters.Allow(limits...); err != nil {
			writeError(w, r, h.log, route, err)
			return
		}
		result, err := fn(w, r)
		if err != nil {
			writeError(w, r, h.log, route, err)
			return
		}
		writeResult(w, result)
	})
	next = LimitBody(h.cfg.MaxBodyBytes, next)
	next = Recover(route, h.log, next)
	next = Instrument(route, h.log, h.metrics, next)
	mux.Handle(pattern, RequestID(next))
}

// withLock runs fn while holding the training lock of (alg, tag)
func (h *Handler) withLock(ctx context.Context, alg model.Algorithm, tag string, fn func() error) error {
	if alg == "" {
		alg = h.svc.Config().DefaultAlgorithm
	}
	release, err := h.locker.Acquire(ctx, fmt.Sprintf("train:%s:%s", alg, tag), h.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

type rebuildRequest struct {
	EventType string `json:"event_type"`
	Tag       string `json:"tag"`
	AlgoType  string `json:"algo_type"`
}

func (h *Handler) rebuildEvent(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req rebuildRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := required("event_type", req.EventType, "tag", req.Tag); err != nil {
		return nil, err
	}

	var id string
	err := h.withLock(r.Context(), model.Algorithm(req.AlgoType), req.Tag, func() (err error) {
		id, err = h.svc.RebuildEvent(r.Context(), req.EventType, model.Algorithm(req.AlgoType), req.Tag)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ModelRef{ModelObjectID: id}, nil
}

type initAllRequest struct {
	Tag      string `json:"tag"`
	AlgoType string `json:"algo_type"`
}

func (h *Handler) initAll(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req initAllRequest
	if err := decodeOptional(r, &req); err != nil {
		return nil, err
	}

	alg := model.Algorithm(req.AlgoType)
	if req.Tag == "" {
		// generated tags are unique per second, nothing to serialize on
		return h.svc.InitAll(r.Context(), "", alg)
	}

	var res *analyzer.BatchResult
	err := h.withLock(r.Context(), alg, req.Tag, func() (err error) {
		res, err = h.svc.InitAll(r.Context(), req.Tag, alg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type trainRandomlyRequest struct {
	EventType string `json:"event_type"`
	SourceTag string `json:"source_tag"`
	TargetTag string `json:"target_tag"`
	AlgoType  string `json:"algo_type"`
	ObsLen    int    `json:"obs_len"`
	ObsCount  int    `json:"obs_count"`
}

func (h *Handler) trainRandomly(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req trainRandomlyRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := required("event_type", req.EventType, "source_tag", req.SourceTag); err != nil {
		return nil, err
	}
	if req.ObsLen < 0 || req.ObsCount < 0 {
		return nil, errors.NewValidationError("obs_len", "obs_len and obs_count must not be negative", nil)
	}
	target := req.TargetTag
	if target == "" {
		target = h.svc.Config().RandomTargetTag
	}

	alg := model.Algorithm(req.AlgoType)
	var id string
	err := h.withLock(r.Context(), alg, target, func() (err error) {
		id, err = h.svc.TrainEventRandomly(r.Context(), req.EventType, req.SourceTag, target, alg, req.ObsLen, req.ObsCount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ModelRef{ModelObjectID: id}, nil
}

type trainAllRequest struct {
	SourceTag string `json:"source_tag"`
	TargetTag string `json:"target_tag"`
	AlgoType  string `json:"algo_type"`
}

func (h *Handler) trainRandomlyAll(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req trainAllRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := required("source_tag", req.SourceTag); err != nil {
		return nil, err
	}
	target := req.TargetTag
	if target == "" {
		target = h.svc.Config().RandomTargetTag
	}

	alg := model.Algorithm(req.AlgoType)
	var res *analyzer.BatchResult
	err := h.withLock(r.Context(), alg, target, func() (err error) {
		res, err = h.svc.TrainAll(r.Context(), req.SourceTag, target, alg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type trainRequest struct {
	Obs       json.RawMessage `json:"obs"`
	EventType string          `json:"event_type"`
	SourceTag string          `json:"source_tag"`
	TargetTag string          `json:"target_tag"`
	AlgoType  string          `json:"algo_type"`
}

func (h *Handler) train(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req trainRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if len(req.Obs) == 0 {
		return nil, errors.NewValidationError("obs", "required", nil)
	}
	if err := required("event_type", req.EventType, "source_tag", req.SourceTag); err != nil {
		return nil, err
	}

	var obs catalog.ObservationSet
	if err := json.Unmarshal(req.Obs, &obs); err != nil {
		return nil, errors.NewValidationError("obs", "must be a 2-dimension list of observations", nil)
	}
	for _, seq := range obs {
		if err := complete(seq); err != nil {
			return nil, err
		}
	}
	target := req.TargetTag
	if target == "" {
		target = req.SourceTag
	}

	alg := model.Algorithm(req.AlgoType)
	var id string
	err := h.withLock(r.Context(), alg, target, func() (err error) {
		id, err = h.svc.TrainEvent(r.Context(), obs, req.EventType, req.SourceTag, target, alg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ModelRef{ModelObjectID: id}, nil
}

type predictRequest struct {
	Seq      catalog.Sequence `json:"seq"`
	Tag      string           `json:"tag"`
	AlgoType string           `json:"algo_type"`
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req predictRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := required("tag", req.Tag); err != nil {
		return nil, err
	}
	if err := complete(req.Seq); err != nil {
		return nil, err
	}

	res, err := h.svc.PredictEvent(r.Context(), req.Seq, req.Tag, model.Algorithm(req.AlgoType))
	if err != nil {
		return nil, err
	}
	if len(res.Skipped) > 0 {
		w.Header().Set("X-Skipped-Models", fmt.Sprint(len(res.Skipped)))
	}
	return res.Probabilities, nil
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return h.svc.ListTags(r.Context(), model.Algorithm(r.URL.Query().Get("algo_type")))
}

func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	return h.svc.GetModel(r.Context(), model.Algorithm(q.Get("algo_type")), q.Get("tag"), q.Get("event_type"))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	window := 24 * time.Hour
	if s := q.Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, errors.NewValidationError("window", "must be a positive duration", s)
		}
		window = d
	}
	return h.svc.TopEvents(r.Context(), q.Get("tag"), time.Now().Add(-window))
}

// required checks name/value pairs for missing values
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return errors.NewValidationError(pairs[i], "can't find key", nil)
		}
	}
	return nil
}

// complete rejects observations missing one of the modalities
func complete(seq catalog.Sequence) error {
	for t, o := range seq {
		for _, m := range catalog.Modalities {
			if o.Value(m) == "" {
				return errors.NewValidationError(m.String(), fmt.Sprintf("missing at step %d", t), nil)
			}
		}
	}
	return nil
}

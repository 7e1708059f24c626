// Package pipeline composes the prediction stages for a single request end
// to end: resolve the model handle, validate and extract features, score,
// normalize the output, and optionally persist a history record. Within one
// request extraction strictly precedes scoring, which strictly precedes
// normalization; requests share no mutable state beyond the model cache.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"medpredict/internal/domain"
	"medpredict/internal/infer"
	"medpredict/internal/model"
	"medpredict/internal/schema"
)

// Request is one inbound prediction request. Tabular domains populate
// Fields; the image domain populates ImageName and ImageData. Identity is
// empty for anonymous callers.
type Request struct {
	Domain    domain.Domain
	Fields    domain.RawPayload
	ImageName string
	ImageData []byte
	Identity  string
}

// Acquirer supplies the memoized model handle for a domain. Satisfied by
// *model.Cache.
type Acquirer interface {
	Acquire(d domain.Domain) (*model.Handle, error)
}

// HistorySink accepts a completed prediction for durable storage. Failures
// are non-fatal to the caller.
type HistorySink interface {
	Record(ctx context.Context, rec domain.HistoryRecord) error
}

// Metrics receives pipeline instrumentation events. All methods must be safe
// for concurrent use.
type Metrics interface {
	PredictionInc(d domain.Domain)
	FailureInc(d domain.Domain, kind string)
	LatencyObserve(d domain.Domain, seconds float64)
	HistoryWriteInc()
	HistoryFailureInc()
}

// Pipeline orchestrates one prediction request through
// Received -> Validated -> Scored -> Normalized -> (Persisted) -> Completed.
// Any failure short-circuits to a classified *domain.Error; no panic escapes
// Run.
type Pipeline struct {
	cache   Acquirer
	history HistorySink // nil disables persistence
	metrics Metrics     // nil disables instrumentation
}

// New wires the pipeline with its collaborators. history and metrics may be
// nil.
func New(cache Acquirer, history HistorySink, metrics Metrics) *Pipeline {
	return &Pipeline{cache: cache, history: history, metrics: metrics}
}

// Run executes the pipeline for one request. On success it returns exactly
// one normalized result; on failure a *domain.Error classifying the cause.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *domain.PredictionResult, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.LatencyObserve(req.Domain, time.Since(start).Seconds())
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("domain", string(req.Domain)).
				Interface("panic", r).
				Msg("panic during prediction")
			res = nil
			err = p.fail(req.Domain, domain.Internal(fmt.Errorf("panic: %v", r)))
		}
	}()

	// A cache miss fails the request before any validation work.
	handle, err := p.cache.Acquire(req.Domain)
	if err != nil {
		return nil, p.fail(req.Domain, err)
	}

	sch := schema.For(req.Domain)
	var (
		out infer.Outcome
		vec schema.FeatureVector
	)
	if req.Domain.IsImage() {
		tensor, xerr := schema.ExtractImage(sch.Image, req.ImageName, req.ImageData)
		if xerr != nil {
			return nil, p.fail(req.Domain, xerr)
		}
		out, err = infer.Image(handle, tensor)
	} else {
		vec, err = schema.Extract(sch, req.Fields)
		if err != nil {
			return nil, p.fail(req.Domain, err)
		}
		out, err = infer.Tabular(handle, vec)
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("domain", string(req.Domain)).
			Msg("inference failed")
		return nil, p.fail(req.Domain, domain.Internal(err))
	}

	res = normalize(req.Domain, out, vec)
	p.persist(ctx, req, res)

	if p.metrics != nil {
		p.metrics.PredictionInc(req.Domain)
	}
	return res, nil
}

// fail classifies an error, counts it, and ensures the caller always sees a
// *domain.Error.
func (p *Pipeline) fail(d domain.Domain, err error) error {
	derr, ok := err.(*domain.Error)
	if !ok {
		derr = domain.Internal(err)
	}
	if p.metrics != nil {
		p.metrics.FailureInc(d, kindLabel(derr.Kind))
	}
	return derr
}

// persist records the completed prediction for an authenticated identity.
// Skipped, not failed, when no identity is attached; a sink error is logged
// and swallowed so it can never alter the response already computed.
func (p *Pipeline) persist(ctx context.Context, req Request, res *domain.PredictionResult) {
	if req.Identity == "" || p.history == nil {
		return
	}

	rec := domain.HistoryRecord{
		Identity:  req.Identity,
		Domain:    req.Domain,
		Input:     inputSnapshot(req),
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.history.Record(ctx, rec); err != nil {
		log.Warn().
			Err(err).
			Str("domain", string(req.Domain)).
			Str("identity", req.Identity).
			Msg("history write failed")
		if p.metrics != nil {
			p.metrics.HistoryFailureInc()
		}
		return
	}
	if p.metrics != nil {
		p.metrics.HistoryWriteInc()
	}
}

// inputSnapshot echoes the request input into the history record. Image
// uploads are summarized rather than stored byte-for-byte.
func inputSnapshot(req Request) domain.RawPayload {
	if req.Domain.IsImage() {
		return domain.RawPayload{
			"filename":   req.ImageName,
			"size_bytes": len(req.ImageData),
		}
	}
	snapshot := make(domain.RawPayload, len(req.Fields))
	for k, v := range req.Fields {
		snapshot[k] = v
	}
	return snapshot
}

func kindLabel(k domain.ErrorKind) string {
	switch k {
	case domain.KindResourceUnavailable:
		return "model_unavailable"
	case domain.KindMissingFields:
		return "missing_fields"
	case domain.KindInvalidValue:
		return "invalid_value"
	case domain.KindImageProcessing:
		return "image_processing"
	default:
		return "internal"
	}
}

// Package translate drives README generation: it frames project text as one
// or more requests, submits them in order and reduces the replies to a
// single effective response.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/chunker"
	"github.com/duoreadme/duoreadme/extract"
	"github.com/duoreadme/duoreadme/langmeta"
	"github.com/duoreadme/duoreadme/normalize"
)

const (
	DefaultSingleShotLimit = 15000
	DefaultBatchLimit      = 30000
)

// DefaultLanguages is used when neither flags nor config name any.
var DefaultLanguages = []string{"zh-Hans", "en", "ja"}

// ErrNothingToSubmit is returned for empty project text.
var ErrNothingToSubmit = errors.New("nothing to submit")

// Request is one submission.
type Request struct {
	// Prompt is the framed user message.
	Prompt string
	// System is the instruction for providers with a system role.
	System string
	// Variables are passed verbatim to workflow-style endpoints.
	Variables map[string]string
	// Part and Total number the batch, 1-based.
	Part  int
	Total int
}

// Submitter sends a request and returns the accumulated reply text.
type Submitter interface {
	Submit(ctx context.Context, req Request) (string, error)
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, req Request) (string, error)

func (f SubmitFunc) Submit(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// BatchError reports the batch that aborted a run.
type BatchError struct {
	Index int
	Total int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d/%d: %v", e.Index, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Reduce selects how batch replies are combined.
type Reduce string

const (
	// ReduceMerge merges the documents of all replies per language; a later
	// non-empty document wins for languages present in several batches.
	ReduceMerge Reduce = "merge"
	// ReduceLast keeps only the final reply.
	ReduceLast Reduce = "last"
)

// ParseReduce validates a reduce policy name. Empty means merge.
func ParseReduce(s string) (Reduce, error) {
	switch Reduce(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReduceMerge:
		return ReduceMerge, nil
	case ReduceLast:
		return ReduceLast, nil
	}
	return "", fmt.Errorf("unknown reduce policy %q (want merge or last)", s)
}

// Options controls a run.
type Options struct {
	// Languages are canonical codes to request.
	Languages []string
	// Registry defaults to langmeta.Default().
	Registry *langmeta.Registry
	// SingleShotLimit is the largest text sent without chunking.
	SingleShotLimit int
	// BatchLimit is the byte budget of each batch once chunking applies.
	BatchLimit int
	Reduce     Reduce
	Logger     *zap.Logger
	// OnProgress is called after each batch completes.
	OnProgress func(done, total int)
}

func (o *Options) effectiveSingleShotLimit() int {
	if o.SingleShotLimit > 0 {
		return o.SingleShotLimit
	}
	return DefaultSingleShotLimit
}

func (o *Options) effectiveBatchLimit() int {
	if o.BatchLimit > 0 {
		return o.BatchLimit
	}
	return DefaultBatchLimit
}

func (o *Options) effectiveLanguages() []string {
	if len(o.Languages) > 0 {
		return o.Languages
	}
	return DefaultLanguages
}

func (o *Options) effectiveRegistry() *langmeta.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return langmeta.Default()
}

func (o *Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// Result is the outcome of a successful run.
type Result struct {
	// Raw is the effective response handed to extraction.
	Raw string
	// Responses holds every batch reply in order.
	Responses []string
	Batches   int
}

// Orchestrator submits project text batch by batch.
type Orchestrator struct {
	submit Submitter
	opts   Options
}

// New returns an orchestrator using s for every submission.
func New(s Submitter, opts Options) *Orchestrator {
	return &Orchestrator{submit: s, opts: opts}
}

// Plan returns the batches Run would submit.
func (o *Orchestrator) Plan(text string) []chunker.Batch {
	if text == "" {
		return nil
	}
	if len(text) <= o.opts.effectiveSingleShotLimit() {
		return []chunker.Batch{{Index: 1, Text: text, Sections: len(chunker.Split(text))}}
	}
	return chunker.Chunk(text, o.opts.effectiveBatchLimit())
}

// Run submits text and reduces the replies. Batches go strictly one after
// another; the first failure aborts the run with a *BatchError.
func (o *Orchestrator) Run(ctx context.Context, text string) (*Result, error) {
	batches := o.Plan(text)
	if len(batches) == 0 {
		return nil, ErrNothingToSubmit
	}
	log := o.opts.logger()
	reg := o.opts.effectiveRegistry()
	langs := o.opts.effectiveLanguages()
	total := len(batches)
	chunked := len(text) > o.opts.effectiveSingleShotLimit()

	log.Info("submitting project text",
		zap.Int("bytes", len(text)),
		zap.Int("batches", total),
		zap.Strings("languages", langs),
	)

	responses := make([]string, 0, total)
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, &BatchError{Index: b.Index, Total: total, Err: err}
		}
		req := Request{
			System: SystemPrompt,
			Variables: map[string]string{
				"code_text": b.Text,
				"language":  LanguageList(reg, langs),
			},
			Part:  b.Index,
			Total: total,
		}
		if chunked {
			req.Prompt = BuildBatchPrompt(reg, langs, b.Text, b.Index, total)
		} else {
			req.Prompt = BuildPrompt(reg, langs, b.Text)
		}

		log.Debug("submitting batch", zap.Int("batch", b.Index), zap.Int("total", total), zap.Int("bytes", b.Len()))
		resp, err := o.submit.Submit(ctx, req)
		if err != nil {
			log.Error("batch failed", zap.Int("batch", b.Index), zap.Int("total", total), zap.Error(err))
			return nil, &BatchError{Index: b.Index, Total: total, Err: err}
		}
		log.Debug("batch done", zap.Int("batch", b.Index), zap.Int("response_bytes", len(resp)))
		responses = append(responses, resp)
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(b.Index, total)
		}
	}

	return &Result{
		Raw:       o.reduce(responses),
		Responses: responses,
		Batches:   total,
	}, nil
}

func (o *Orchestrator) reduce(responses []string) string {
	last := responses[len(responses)-1]
	if len(responses) == 1 || o.opts.Reduce == ReduceLast {
		return last
	}
	log := o.opts.logger()
	reg := o.opts.effectiveRegistry()
	chain := extract.DefaultChain(log)

	// Replies are merged per canonical language, so "en" in one batch and
	// "English readme" in another are the same document, and an empty reply
	// never replaces text an earlier batch produced.
	merged := normalize.NewContent()
	usable := 0
	for i, resp := range responses {
		obj, err := chain.Extract(resp)
		if err != nil {
			log.Warn("batch reply has no structured content, skipped in merge", zap.Int("batch", i+1))
			continue
		}
		content := normalize.Normalize(obj, normalize.Options{Registry: reg, Logger: log})
		if content.Len() == 0 {
			log.Warn("batch reply has no routable documents, skipped in merge", zap.Int("batch", i+1))
			continue
		}
		merged = merged.Merge(content)
		usable++
	}
	if usable == 0 {
		return last
	}
	log.Debug("merged batch replies",
		zap.Int("replies", usable),
		zap.Strings("languages", merged.Codes()),
		zap.Strings("unroutable", merged.Unroutable()),
	)
	return encodeContent(reg, merged)
}

// encodeContent renders content as a JSON object keyed the way the
// generator is asked to key it ("English readme"), in content order.
func encodeContent(reg *langmeta.Registry, c *normalize.Content) string {
	obj := make(extract.Object, 0, c.Len())
	for _, code := range c.Codes() {
		key := code
		if l, ok := reg.Language(code); ok {
			key = l.ReadmeKey()
		}
		text, _ := c.Get(code)
		obj = append(obj, extract.Field{Key: key, Value: text})
	}
	return obj.Encode()
}

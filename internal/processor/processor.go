// Package processor runs a correction request end to end: intake, mode,
// ruleset, pre-check, correction, change extraction, post-check and dispatch.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"editguard/internal/adapter"
	"editguard/internal/constraint"
	"editguard/internal/diff"
	"editguard/internal/events"
	"editguard/internal/faults"
	"editguard/internal/intake"
	"editguard/internal/logging"
	"editguard/internal/mode"
	"editguard/internal/store"
	"editguard/internal/validate"
)

// Processor events.
const (
	EventWarning = "processor.warning"
	EventFailed  = "processor.failed"
	EventDone    = "processor.done"
	EventSlow    = "processor.slow"
)

// Corrector proposes corrected text for a ruleset. It is supplied by the host.
type Corrector interface {
	Correct(ctx context.Context, text string, rs *constraint.Ruleset) (string, error)
}

// CorrectorFunc adapts a function to Corrector.
type CorrectorFunc func(ctx context.Context, text string, rs *constraint.Ruleset) (string, error)

func (f CorrectorFunc) Correct(ctx context.Context, text string, rs *constraint.Ruleset) (string, error) {
	return f(ctx, text, rs)
}

// Deps are the collaborators of a Processor. Bus and Store may be nil.
type Deps struct {
	Modes     *mode.Registry
	Compiler  *constraint.Compiler
	Validator *validate.Validator
	Engine    *diff.Engine
	Router    *adapter.Router
	Corrector Corrector
	Bus       *events.Bus
	Store     *store.Store
}

// Options configures a Processor.
type Options struct {
	Limits        intake.Limits
	Compile       constraint.Options
	SlowThreshold time.Duration
	Persist       bool
	Now           func() time.Time
}

// Processor is safe for concurrent use.
type Processor struct {
	deps    Deps
	opts    Options
	logger  *zap.Logger
	auditor *logging.Auditor
}

// New checks deps and returns a Processor.
func New(deps Deps, opts Options, l *zap.Logger) (*Processor, error) {
	switch {
	case deps.Modes == nil:
		return nil, errors.New("processor: mode registry required")
	case deps.Compiler == nil:
		return nil, errors.New("processor: compiler required")
	case deps.Validator == nil:
		return nil, errors.New("processor: validator required")
	case deps.Engine == nil:
		return nil, errors.New("processor: diff engine required")
	case deps.Router == nil:
		return nil, errors.New("processor: router required")
	case deps.Corrector == nil:
		return nil, errors.New("processor: corrector required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{
		deps:    deps,
		opts:    opts,
		logger:  logging.For(l, logging.CategoryProcessor),
		auditor: logging.NewAuditor(l),
	}, nil
}

// run carries the state of one request through the pipeline.
type run struct {
	p     *Processor
	res   *Result
	start time.Time
}

func (r *run) stage(name string, fn func(st *Stage) error) error {
	st := Stage{Name: name, Started: r.p.opts.Now()}
	err := fn(&st)
	st.Duration = r.p.opts.Now().Sub(st.Started)
	r.res.Provenance = append(r.res.Provenance, st)
	return err
}

func (r *run) warn(source, msg string) {
	r.res.Summary.Warnings = append(r.res.Summary.Warnings, msg)
	r.p.emit(EventWarning, Warning{ResultID: r.res.ID, Source: source, Message: msg})
}

// Warning is the payload of processor.warning events.
type Warning struct {
	ResultID string `json:"result_id"`
	Source   string `json:"source"`
	Message  string `json:"message"`
}

// Process runs req through the pipeline. Fatal failures return a result
// with Success false, no changes and Error set, together with the error.
func (p *Processor) Process(ctx context.Context, req intake.Request) (*Result, error) {
	r := &run{
		p:     p,
		start: p.opts.Now(),
		res: &Result{
			ID:        uuid.NewString(),
			Conflicts: []Conflict{},
			Metadata:  map[string]string{},
		},
	}
	res := r.res

	if err := r.stage(StageIntake, func(*Stage) error { return intake.Validate(&req, p.opts.Limits) }); err != nil {
		return p.fail(ctx, r, StageIntake, err)
	}
	res.IntakeID = req.ID
	res.Metadata["mode_id"] = req.ModeID
	if req.SessionID != "" {
		res.Metadata["session_id"] = req.SessionID
	}
	for k, v := range req.Metadata {
		res.Metadata[k] = v
	}
	p.auditor.Log(logging.AuditEvent{Type: logging.AuditRequestReceived, RequestID: req.ID, Target: req.ModeID, Success: true})

	if err := r.stage(StageMode, func(st *Stage) error {
		m, err := p.deps.Modes.Get(req.ModeID)
		st.Note = m.Version
		return err
	}); err != nil {
		return p.fail(ctx, r, StageMode, err)
	}

	var rs *constraint.Ruleset
	if err := r.stage(StageCompile, func(st *Stage) error {
		var warnings []constraint.Warning
		var err error
		rs, warnings, err = p.deps.Modes.Ruleset(ctx, req.ModeID, p.deps.Compiler, p.compileOptions(req.Preferences))
		for _, w := range warnings {
			if w.Code == constraint.WarnDroppedRule {
				r.warn(StageCompile, w.String())
				continue
			}
			res.Conflicts = append(res.Conflicts, Conflict{Code: w.Code, Message: w.Message, Constraints: w.Constraints})
			r.warn(StageCompile, w.String())
		}
		if err == nil {
			st.Note = rs.Digest
		}
		return err
	}); err != nil {
		return p.fail(ctx, r, StageCompile, err)
	}
	res.Metadata["ruleset_digest"] = rs.Digest
	p.auditor.Log(logging.AuditEvent{Type: logging.AuditRulesetCompiled, RequestID: req.ID, Target: req.ModeID, Success: true,
		Fields: []zap.Field{zap.Int("constraints", len(rs.Constraints)), zap.String("digest", rs.Digest)}})

	if err := r.stage(StagePreCheck, func(*Stage) error {
		rep := p.deps.Validator.PreCheck(rs)
		for _, w := range rep.Warnings {
			r.warn(StagePreCheck, w.String())
		}
		if !rep.Passed {
			return faults.Wrap(fmt.Errorf("ruleset failed pre-check: %s", rep.Errors[0]), faults.CategoryCompileFailed,
				"pre_check_failed", "", false)
		}
		return nil
	}); err != nil {
		return p.fail(ctx, r, StagePreCheck, err)
	}

	var corrected string
	if err := r.stage(StageCorrect, func(*Stage) error {
		var err error
		corrected, err = p.deps.Corrector.Correct(ctx, req.SourceText, rs)
		if err != nil {
			return faults.Wrap(fmt.Errorf("corrector: %w", err), faults.CategoryBackendFailure, "corrector_failed", "", true)
		}
		return nil
	}); err != nil {
		return p.fail(ctx, r, StageCorrect, err)
	}

	var changes []diff.Change
	_ = r.stage(StageDiff, func(st *Stage) error {
		changes = p.deps.Engine.Changes(req.SourceText, corrected)
		st.Note = fmt.Sprintf("%d changes", len(changes))
		return nil
	})
	p.auditor.Log(logging.AuditEvent{Type: logging.AuditChangesExtracted, RequestID: req.ID, Success: true,
		Fields: []zap.Field{zap.Int("changes", len(changes))}})

	if err := r.stage(StagePostCheck, func(st *Stage) error {
		rep := p.deps.Validator.PostCheck(rs, req.SourceText, corrected, changes)
		res.Metadata["change_ratio"] = fmt.Sprintf("%.4f", rep.ChangeRatio)
		for _, w := range rep.Warnings {
			r.warn(StagePostCheck, w.String())
		}
		if !rep.Passed {
			p.auditor.Log(logging.AuditEvent{Type: logging.AuditPostCheckFailed, RequestID: req.ID, Message: rep.Errors[0].String()})
			return faults.Wrap(fmt.Errorf("correction rejected: %s", rep.Errors[0]), faults.CategoryConstraintViolation,
				rep.Errors[0].Predicate, "", false)
		}
		return nil
	}); err != nil {
		return p.fail(ctx, r, StagePostCheck, err)
	}

	output := corrected
	if err := r.stage(StageDispatch, func(st *Stage) error {
		if len(changes) == 0 {
			st.Note = "no changes"
			return nil
		}
		job := adapter.NewJobFromRuleset(uuid.NewString(), req.SourceText, changes, rs)
		d, err := p.deps.Router.Dispatch(ctx, job)
		if err != nil {
			p.auditor.Log(logging.AuditEvent{Type: logging.AuditDispatchFailed, RequestID: req.ID, Message: err.Error()})
			return err
		}
		st.Backend = d.Adapter
		if d.Result.Output != "" {
			output = d.Result.Output
		}
		p.auditor.Log(logging.AuditEvent{Type: logging.AuditDispatchComplete, RequestID: req.ID, Target: d.Adapter,
			Success: true, Duration: p.opts.Now().Sub(st.Started), Fields: []zap.Field{zap.Int("attempts", len(d.Attempts))}})
		return nil
	}); err != nil {
		return p.fail(ctx, r, StageDispatch, err)
	}

	res.Success = true
	res.Output = output
	res.Changes = changes
	warnings := res.Summary.Warnings
	res.Summary = summarize(changes)
	res.Summary.Warnings = warnings
	p.finish(ctx, r)
	p.emit(EventDone, res.Clone())
	return res, nil
}

func (p *Processor) compileOptions(prefs intake.Preferences) constraint.Options {
	opts := p.opts.Compile
	if d := prefs.TimeoutDuration(); d > 0 {
		opts.Timeout = d
	}
	if len(prefs.PreferredBackends) > 0 {
		opts.PreferredBackends = prefs.PreferredBackends
	}
	if prefs.FallbackPolicy != "" {
		opts.FallbackPolicy = prefs.FallbackPolicy
	}
	return opts
}

func (p *Processor) fail(ctx context.Context, r *run, stage string, err error) (*Result, error) {
	res := r.res
	res.Success = false
	res.Changes = nil
	res.Output = ""
	res.Error = &ErrorInfo{
		Stage:     stage,
		Category:  faults.CategoryOf(err),
		Code:      faults.CodeOf(err),
		Message:   err.Error(),
		Hint:      faults.HintOf(err),
		Retryable: faults.RetryableOf(err),
	}
	if res.Error.Category == "" {
		res.Error.Category = faults.CategoryInternalFailure
	}
	var derr *adapter.DispatchError
	if errors.As(err, &derr) {
		res.Error.Attempts = derr.Attempts
	}
	p.logger.Warn("request failed", zap.String("result", res.ID), zap.String("stage", stage), zap.Error(err))
	if stage == StageIntake {
		p.auditor.Log(logging.AuditEvent{Type: logging.AuditRequestRejected, RequestID: res.IntakeID, Message: err.Error()})
	}
	p.finish(ctx, r)
	p.emit(EventFailed, res.Clone())
	return res, err
}

// finish stamps the processing time, flags slow requests and persists.
func (p *Processor) finish(ctx context.Context, r *run) {
	res := r.res
	res.ProcessingTime = p.opts.Now().Sub(r.start)
	if p.opts.SlowThreshold > 0 && res.ProcessingTime > p.opts.SlowThreshold {
		r.warn("processor", fmt.Sprintf("processing took %v, above %v", res.ProcessingTime.Round(time.Millisecond), p.opts.SlowThreshold))
		p.emit(EventSlow, res.ProcessingTime)
	}
	p.logger.Debug("request finished",
		zap.String("result", res.ID),
		zap.Bool("success", res.Success),
		zap.Int("changes", len(res.Changes)),
		zap.Duration("took", res.ProcessingTime))

	if p.deps.Store == nil || !p.opts.Persist {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		p.logger.Error("encode result", zap.Error(err))
		return
	}
	rec := store.ResultRecord{
		ID:          res.ID,
		IntakeID:    res.IntakeID,
		ModeID:      res.Metadata["mode_id"],
		Success:     res.Success,
		Digest:      res.Metadata["ruleset_digest"],
		ChangeCount: len(res.Changes),
		Processing:  res.ProcessingTime,
		Payload:     payload,
		CreatedAt:   r.start,
	}
	if err := p.deps.Store.SaveResult(context.WithoutCancel(ctx), rec); err != nil {
		p.logger.Error("persist result", zap.String("result", res.ID), zap.Error(err))
		return
	}
	p.auditor.Log(logging.AuditEvent{Type: logging.AuditResultStored, RequestID: res.IntakeID, Target: res.ID, Success: true})
}

func (p *Processor) emit(name string, payload any) {
	if p.deps.Bus != nil {
		p.deps.Bus.Emit(name, payload)
	}
}

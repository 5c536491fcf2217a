package redeem

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"giftcode/internal/gameapi"
	"giftcode/internal/models"
	"giftcode/internal/staging"
)

const (
	DefaultMaxAttempts = 4
	DefaultRetryDelay  = 2 * time.Second
	DefaultUnitDelay   = time.Second
)

type GameClient interface {
	Login(ctx context.Context, fid string) (*gameapi.Token, error)
	FetchCaptcha(ctx context.Context, fid string) (*gameapi.CaptchaChallenge, error)
	Redeem(ctx context.Context, fid string, code string, solution string) (*gameapi.RedeemResponse, error)
	Invalidate(fid string)
}

type Solver interface {
	// Solve returns the challenge text and an id used later to report whether the solution was accepted.
	Solve(ctx context.Context, image string) (string, int64, error)
}

type State int

const (
	LoggingIn State = iota
	FetchingCaptcha
	Solving
	Redeeming
	Retrying
	Succeeded
	CodeExpired
	Abandoned
)

var stateNames = [...]string{"LoggingIn", "FetchingCaptcha", "Solving", "Redeeming", "Retrying", "Succeeded", "CodeExpired", "Abandoned"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

func (s State) Terminal() bool {
	return s == Succeeded || s == CodeExpired || s == Abandoned
}

// verdictTransitions is the state entered after Redeeming for each verdict.
var verdictTransitions = map[Verdict]State{
	Success:          Succeeded,
	AlreadyClaimed:   Succeeded,
	Expired:          CodeExpired,
	Invalid:          CodeExpired,
	SignError:        Retrying,
	CaptchaError:     Retrying,
	RetryableUnknown: Retrying,
	FatalUnknown:     Abandoned,
}

type UnitResult struct {
	Unit     models.WorkUnit
	State    State
	Attempts int
	Outcome  Outcome
	Err      error
}

type ExecutorConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
	UnitDelay   time.Duration
}

// Executor drives one (player, code) unit through login, captcha and redeem.
type Executor struct {
	client     GameClient
	solver     Solver
	classifier *Classifier
	staging    staging.Log
	cfg        ExecutorConfig
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewExecutor(client GameClient, solver Solver, classifier *Classifier, log staging.Log, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.UnitDelay < 0 {
		cfg.UnitDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		client:     client,
		solver:     solver,
		classifier: classifier,
		staging:    log,
		cfg:        cfg,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// unitRun carries the data passed between states of one unit.
type unitRun struct {
	UnitResult
	challenge *gameapi.CaptchaChallenge
	solution  string
	solveID   int64
}

func (e *Executor) Run(ctx context.Context, unit models.WorkUnit) UnitResult {
	run := &unitRun{UnitResult: UnitResult{Unit: unit, State: LoggingIn}}
	logger := e.logger.With("fid", unit.FID, "code", unit.Code)

	for !run.State.Terminal() {
		if err := ctx.Err(); err != nil {
			run.State, run.Err = Abandoned, err
			break
		}

		switch run.State {
		case LoggingIn:
			run.State = e.login(ctx, run, logger)
		case FetchingCaptcha:
			run.State = e.fetchCaptcha(ctx, run, logger)
		case Solving:
			run.State = e.solve(ctx, run, logger)
		case Redeeming:
			run.State = e.redeem(ctx, run, logger)
		case Retrying:
			run.State = e.retry(ctx, run)
		}
	}

	switch {
	case run.Err != nil:
		logger.Info("unit cancelled", "state", run.State, "attempts", run.Attempts)
	case run.State == Abandoned:
		logger.Warn("unit abandoned", "attempts", run.Attempts, "verdict", run.Outcome.Verdict, "err_code", run.Outcome.Code)
	default:
		logger.Info("unit finished", "state", run.State, "attempts", run.Attempts, "verdict", run.Outcome.Verdict)
	}
	return run.UnitResult
}

// Pace waits the configured pause between two units.
func (e *Executor) Pace(ctx context.Context) error {
	return e.sleep(ctx, e.cfg.UnitDelay)
}

func (e *Executor) login(ctx context.Context, run *unitRun, logger *slog.Logger) State {
	tok, err := e.client.Login(ctx, run.Unit.FID)
	if err != nil {
		run.Err = err
		return Abandoned
	}
	if tok == nil {
		logger.Info("login failed, skipping unit")
		return Abandoned
	}
	e.stage(ctx, logger, staging.PlayerProfile{Profile: tok.Profile})
	return FetchingCaptcha
}

func (e *Executor) fetchCaptcha(ctx context.Context, run *unitRun, logger *slog.Logger) State {
	if run.Attempts >= e.cfg.MaxAttempts {
		return Abandoned
	}
	run.Attempts++

	challenge, err := e.client.FetchCaptcha(ctx, run.Unit.FID)
	if errors.Is(err, gameapi.ErrNotLoggedIn) {
		run.Outcome = Outcome{Verdict: RetryableUnknown, Message: err.Error(), Relogin: true}
		return Retrying
	}
	if err != nil {
		run.Err = err
		return Abandoned
	}
	if challenge == nil {
		logger.Info("no captcha returned", "attempt", run.Attempts)
		run.Outcome = Outcome{Verdict: RetryableUnknown, Message: "no captcha"}
		return Retrying
	}
	run.challenge = challenge
	return Solving
}

func (e *Executor) solve(ctx context.Context, run *unitRun, logger *slog.Logger) State {
	solution, solveID, err := e.solver.Solve(ctx, run.challenge.Image)
	if err != nil {
		if ctx.Err() != nil {
			run.Err = ctx.Err()
			return Abandoned
		}
		logger.Warn("solve captcha", "attempt", run.Attempts, "err", err)
		run.Outcome = Outcome{Verdict: CaptchaError, Message: err.Error()}
		return Retrying
	}
	run.solution, run.solveID = solution, solveID
	return Redeeming
}

func (e *Executor) redeem(ctx context.Context, run *unitRun, logger *slog.Logger) State {
	resp, err := e.client.Redeem(ctx, run.Unit.FID, run.Unit.Code, run.solution)
	if errors.Is(err, gameapi.ErrNotLoggedIn) {
		run.Outcome = Outcome{Verdict: RetryableUnknown, Message: err.Error(), Relogin: true}
		return Retrying
	}
	if err != nil {
		run.Err = err
		return Abandoned
	}

	run.Outcome = e.classifier.Classify(resp)
	next, ok := verdictTransitions[run.Outcome.Verdict]
	if !ok {
		next = Retrying
	}

	switch next {
	case Succeeded:
		e.stage(ctx, logger, staging.Redemption{FID: run.Unit.FID, Code: run.Unit.Code})
		e.stage(ctx, logger, staging.CaptchaFeedback{SolveID: run.solveID, Success: true})
	case CodeExpired:
		e.stage(ctx, logger, staging.Deactivation{Code: run.Unit.Code})
		e.stage(ctx, logger, staging.CaptchaFeedback{SolveID: run.solveID, Success: true})
	case Retrying:
		logger.Info("redeem not accepted", "attempt", run.Attempts, "verdict", run.Outcome.Verdict, "err_code", run.Outcome.Code, "message", run.Outcome.Message)
	}
	return next
}

func (e *Executor) retry(ctx context.Context, run *unitRun) State {
	if run.Attempts >= e.cfg.MaxAttempts {
		return Abandoned
	}
	if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
		run.Err = err
		return Abandoned
	}
	if run.Outcome.Relogin {
		e.client.Invalidate(run.Unit.FID)
		return LoggingIn
	}
	return FetchingCaptcha
}

// stage records a provisional result. It outlives ctx so a result observed right before a deadline is kept.
func (e *Executor) stage(ctx context.Context, logger *slog.Logger, entry staging.Entry) {
	if _, err := e.staging.Append(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error("stage entry", "kind", entry.Kind(), "err", err)
	}
}

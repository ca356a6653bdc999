// Package engine runs the trading session scheduler: a single
// serialized loop that evaluates the watchlist, places orders through
// the ledger, and manages the session lifecycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atlas-desktop/papertrade/internal/analytics"
	"github.com/atlas-desktop/papertrade/internal/fusion"
	"github.com/atlas-desktop/papertrade/internal/learning"
	"github.com/atlas-desktop/papertrade/internal/ledger"
	"github.com/atlas-desktop/papertrade/internal/marketdata"
	"github.com/atlas-desktop/papertrade/internal/persist"
	"github.com/atlas-desktop/papertrade/internal/rebalance"
	"github.com/atlas-desktop/papertrade/internal/risk"
	"github.com/atlas-desktop/papertrade/internal/strategy"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// stopTimeout bounds how long Stop waits for the loop to finish its
// close-out.
const stopTimeout = 10 * time.Second

// InvalidTransitionError reports a session lifecycle call that is not
// legal in the current state. The state is left unchanged.
type InvalidTransitionError struct {
	From  types.SessionState
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Event, e.From)
}

// Callbacks are invoked from the trading loop. They must not block.
type Callbacks struct {
	OnOrder   func(types.Order)
	OnSignal  func(types.Signal)
	OnSession func(types.TradingSession)
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Logger     *zap.Logger
	Clock      Clock
	Market     marketdata.MarketDataPort
	Predictive marketdata.PredictivePort
	Sentiment  marketdata.SentimentPort
	Store      *persist.Store
}

// Engine owns the portfolio and the session loop.
type Engine struct {
	logger     *zap.Logger
	clock      Clock
	market     marketdata.MarketDataPort
	predictive marketdata.PredictivePort
	sentiment  marketdata.SentimentPort
	store      *persist.Store

	registry   *strategy.Registry
	fuser      *fusion.Fuser
	riskMgr    *risk.Manager
	rebalancer *rebalance.Rebalancer
	feedback   *learning.Engine

	mu         sync.RWMutex
	config     types.EngineConfig
	state      types.SessionState
	strat      strategy.Strategy
	book       *ledger.Ledger
	session    *types.TradingSession
	sessions   []types.TradingSession
	cycleCount int64
	// entryFeatures remembers the feature vector captured when a
	// position was opened, keyed by symbol, for outcome labeling.
	entryFeatures map[string]types.Features
	callbacks     Callbacks

	// sentimentSum and sentimentN average the session's sentiment reads.
	sentimentSum float64
	sentimentN   int

	// stopCh and doneCh are non-nil exactly while the loop goroutine is
	// alive, which with auto-restart can outlast the Idle state between
	// daily sessions. stopping marks stopCh as already closed.
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopping bool
}

// New creates an idle engine with the default configuration.
func New(deps Deps) (*Engine, error) {
	if deps.Clock == nil {
		deps.Clock = NewRealClock()
	}
	logger := deps.Logger.Named("engine")

	e := &Engine{
		logger:        logger,
		clock:         deps.Clock,
		market:        deps.Market,
		predictive:    deps.Predictive,
		sentiment:     deps.Sentiment,
		store:         deps.Store,
		registry:      strategy.NewRegistry(deps.Logger),
		fuser:         fusion.New(deps.Logger, fusion.DefaultConfig()),
		riskMgr:       risk.NewManager(deps.Logger, risk.DefaultConfig()),
		rebalancer:    rebalance.New(deps.Logger, rebalance.DefaultConfig()),
		feedback:      learning.NewEngine(deps.Logger, learning.DefaultConfig()),
		state:         types.SessionIdle,
		entryFeatures: make(map[string]types.Features),
	}
	if err := e.Configure(types.DefaultEngineConfig()); err != nil {
		return nil, err
	}
	return e, nil
}

// SetCallbacks installs event callbacks. Call before Start.
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = cb
}

// Configure replaces the engine configuration. Only legal while idle.
func (e *Engine) Configure(config types.EngineConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.SessionIdle {
		return &InvalidTransitionError{From: e.state, Event: "configure"}
	}
	if len(config.Watchlist) == 0 {
		return fmt.Errorf("watchlist must not be empty")
	}
	if config.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("initial capital must be positive")
	}
	if _, err := parseEndOfDay(config.EndOfDay); err != nil {
		return err
	}
	if config.Risk.MaxPositionPct.LessThanOrEqual(decimal.Zero) ||
		config.Risk.DailyLossPct.LessThanOrEqual(decimal.Zero) ||
		config.Risk.SizingFraction.LessThanOrEqual(decimal.Zero) ||
		config.Risk.MaxOrderValue.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("risk parameters must be positive")
	}
	if config.Rebalance.DriftThreshold.LessThanOrEqual(decimal.Zero) ||
		config.Rebalance.MinTradePct.LessThan(decimal.Zero) {
		return fmt.Errorf("rebalance parameters out of range")
	}

	strat, err := e.registry.Create(config.Strategy)
	if err != nil {
		return err
	}

	e.config = config
	e.strat = strat
	e.book = ledger.New(e.logger, config.InitialCapital)
	e.riskMgr = risk.NewManager(e.logger, risk.Config{
		MaxPositionPct: config.Risk.MaxPositionPct,
		DailyLossPct:   config.Risk.DailyLossPct,
		SizingFraction: config.Risk.SizingFraction,
		MaxOrderValue:  config.Risk.MaxOrderValue,
	})
	e.rebalancer = rebalance.New(e.logger, rebalance.Config{
		DriftThreshold: config.Rebalance.DriftThreshold,
		MinTradePct:    config.Rebalance.MinTradePct,
	})
	return nil
}

// RestoreSnapshot loads persisted state into the engine. Only legal
// while idle; a corrupt portfolio aborts rather than trading on
// partial state.
func (e *Engine) RestoreSnapshot(snap *persist.Snapshot) error {
	if snap == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.SessionIdle {
		return &InvalidTransitionError{From: e.state, Event: "restore"}
	}
	if err := e.book.Restore(snap.Portfolio); err != nil {
		return fmt.Errorf("restore portfolio: %w", err)
	}
	if err := e.feedback.Restore(snap.Learning); err != nil {
		return fmt.Errorf("restore learning state: %w", err)
	}
	e.sessions = append([]types.TradingSession(nil), snap.Sessions...)
	e.logger.Info("state restored from snapshot",
		zap.Time("savedAt", snap.SavedAt),
		zap.Int("sessions", len(e.sessions)))
	return nil
}

// Start begins a new trading session and launches the loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.SessionIdle {
		return &InvalidTransitionError{From: e.state, Event: "start"}
	}
	if e.doneCh != nil {
		// The previous loop is still alive, waiting out the overnight
		// gap before an auto-restart. Two loops must never trade the
		// same ledger.
		return fmt.Errorf("session loop still active awaiting next-day restart")
	}

	now := e.clock.Now()
	e.session = &types.TradingSession{
		ID:             uuid.NewString(),
		Date:           now.Format("2006-01-02"),
		StartTime:      now,
		InitialCapital: e.book.TotalValue(),
		ByStrategy:     make(map[string]*types.StrategyPerformance),
	}
	e.riskMgr.ResetDaily(e.book.TotalValue())
	e.entryFeatures = make(map[string]types.Features)
	e.sentimentSum, e.sentimentN = 0, 0
	e.cycleCount = 0
	e.state = types.SessionRunning
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.stopping = false

	e.logger.Info("session started",
		zap.String("sessionId", e.session.ID),
		zap.String("strategy", e.config.Strategy),
		zap.Strings("watchlist", e.config.Watchlist))

	go e.run(e.stopCh, e.doneCh)
	return nil
}

// Pause suspends trading without closing the session.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.SessionRunning {
		return &InvalidTransitionError{From: e.state, Event: "pause"}
	}
	e.state = types.SessionPaused
	e.logger.Info("session paused")
	return nil
}

// Resume continues a paused session.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.SessionPaused {
		return &InvalidTransitionError{From: e.state, Event: "resume"}
	}
	e.state = types.SessionRunning
	e.logger.Info("session resumed")
	return nil
}

// Stop requests a cooperative close-out and waits for the loop to
// finish, bounded by stopTimeout. Stop is accepted whenever the loop
// goroutine is alive, including the overnight auto-restart wait.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.doneCh == nil {
		defer e.mu.Unlock()
		return &InvalidTransitionError{From: e.state, Event: "stop"}
	}
	stopCh, doneCh := e.stopCh, e.doneCh
	alreadyStopping := e.stopping
	e.stopping = true
	e.mu.Unlock()

	// Only the caller that flipped the flag closes the channel, so
	// concurrent Stop calls cannot double-close it.
	if !alreadyStopping {
		close(stopCh)
	}
	select {
	case <-doneCh:
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("session close-out did not finish within %s", stopTimeout)
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() types.SessionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status is a point-in-time view for the API.
type Status struct {
	State      types.SessionState    `json:"state"`
	Session    *types.TradingSession `json:"session,omitempty"`
	Cycles     int64                 `json:"cycles"`
	Portfolio  ledger.Summary        `json:"portfolio"`
	Risk       risk.Stats            `json:"risk"`
	Learning   int                   `json:"learningSamples"`
	Strategy   string                `json:"strategy"`
	Watchlist  []string              `json:"watchlist"`
	Config     types.EngineConfig    `json:"config"`
	ModelReady bool                  `json:"modelReady"`
}

// GetStatus returns the engine status.
func (e *Engine) GetStatus() Status {
	e.mu.RLock()
	var session *types.TradingSession
	if e.session != nil {
		cp := *e.session
		session = &cp
	}
	status := Status{
		State:     e.state,
		Session:   session,
		Cycles:    e.cycleCount,
		Strategy:  e.config.Strategy,
		Watchlist: append([]string(nil), e.config.Watchlist...),
		Config:    e.config,
	}
	book := e.book
	e.mu.RUnlock()

	status.Portfolio = book.Summarize()
	status.Risk = e.riskMgr.GetStats()
	status.Learning = e.feedback.SampleCount()
	status.ModelReady = e.feedback.Trained()
	return status
}

// Ledger exposes the portfolio for read-only API queries.
func (e *Engine) Ledger() *ledger.Ledger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book
}

// Sessions returns closed session history, oldest first.
func (e *Engine) Sessions() []types.TradingSession {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.TradingSession, len(e.sessions))
	copy(out, e.sessions)
	return out
}

// run is the single serialized trading loop. All order placement
// happens here.
func (e *Engine) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer func() {
		e.mu.Lock()
		e.stopCh, e.doneCh = nil, nil
		e.stopping = false
		e.mu.Unlock()
		close(doneCh)
	}()

	for {
		now := e.clock.Now()

		// End-of-day check comes before any trading work.
		if e.pastEndOfDay(now) {
			e.closeOut(now, "end of day")
			if !e.shouldAutoRestart() {
				return
			}
			if !e.waitForNextDay(stopCh) {
				return
			}
			e.startNextDaySession()
			continue
		}

		select {
		case <-stopCh:
			e.closeOut(e.clock.Now(), "stop requested")
			return
		default:
		}

		if e.State() == types.SessionRunning {
			e.cycle(now)
		}

		e.mu.RLock()
		interval := e.config.CycleInterval
		e.mu.RUnlock()

		select {
		case <-stopCh:
			e.closeOut(e.clock.Now(), "stop requested")
			return
		case <-e.clock.After(interval):
		}
	}
}

// cycle evaluates every watchlist symbol once.
func (e *Engine) cycle(now time.Time) {
	// Synthetic feeds advance one bar per cycle.
	if adv, ok := e.market.(interface{ Advance() }); ok {
		adv.Advance()
	}

	prices := e.collectPrices(now)
	if len(prices) > 0 {
		e.book.Revalue(prices)
	}
	e.book.Snapshot(now)
	// Unrealized drawdown counts against the daily loss budget.
	e.riskMgr.MarkEquity(e.book.TotalValue())

	e.mu.Lock()
	e.cycleCount++
	count := e.cycleCount
	config := e.config
	strat := e.strat
	e.mu.Unlock()

	for _, symbol := range config.Watchlist {
		e.evaluateSymbol(now, symbol, strat, config)
	}

	if config.RebalanceEvery > 0 && count%int64(config.RebalanceEvery) == 0 && len(config.TargetAllocation) > 0 {
		for _, order := range e.rebalancer.Execute(e.book, config.TargetAllocation, prices, now) {
			e.recordFill(*order)
		}
	}
}

// evaluateSymbol runs the full pipeline for one symbol. Data failures
// skip the symbol; the cycle goes on.
func (e *Engine) evaluateSymbol(now time.Time, symbol string, strat strategy.Strategy, config types.EngineConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), config.SymbolTimeout)
	defer cancel()

	series, err := e.market.GetSeries(ctx, symbol, config.Lookback)
	if err != nil {
		var unavailable *marketdata.DataUnavailableError
		if errors.As(err, &unavailable) {
			e.logger.Warn("symbol skipped", zap.String("symbol", symbol), zap.Error(err))
			return
		}
		e.logger.Error("market data error", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if len(series) == 0 {
		return
	}
	lastBar := series[len(series)-1]
	price := lastBar.Close

	// Exit checks run before new-entry evaluation.
	if pos := e.book.Position(symbol); pos != nil && strat.ShouldExit(pos, lastBar) {
		e.closePosition(symbol, pos.Quantity, price, strat.Name(), "strategy exit", now)
		return
	}

	sentiment := 0.0
	if e.sentiment != nil {
		if score, err := e.sentiment.Sentiment(ctx, symbol); err == nil {
			sentiment = score
			e.mu.Lock()
			e.sentimentSum += score
			e.sentimentN++
			e.mu.Unlock()
		}
	}
	features := strategy.ExtractFeatures(series, barsPerDay(config.CycleInterval), sentiment, now)

	var predictive *types.Prediction
	if e.predictive != nil {
		predictive, err = e.predictive.Predict(ctx, symbol, series)
		if err != nil {
			e.logger.Warn("predictive port error", zap.String("symbol", symbol), zap.Error(err))
			predictive = nil
		}
	}

	sig := e.fuser.Fuse(fusion.Inputs{
		Symbol:     symbol,
		Price:      price,
		Strategy:   strat.Evaluate(series),
		Predictive: predictive,
		RiskUsage:  e.riskMgr.DailyLossUsage(),
		Learned:    e.feedback.Predict(features),
		At:         now,
	})
	e.emitSignal(*sig)
	if !sig.Actionable() {
		return
	}

	switch sig.Type {
	case types.SignalBuy, types.SignalStrongBuy:
		e.openPosition(symbol, price, sig.Confidence, features, strat.Name(), sig.Reasoning, now)
	case types.SignalSell, types.SignalStrongSell:
		if pos := e.book.Position(symbol); pos != nil {
			e.closePosition(symbol, pos.Quantity, price, strat.Name(), sig.Reasoning, now)
		}
	}
}

func (e *Engine) openPosition(symbol string, price decimal.Decimal, confidence float64, features types.Features, stratName, reason string, now time.Time) {
	summary := e.book.Summarize()
	qty := e.riskMgr.SizePosition(confidence, price, summary.Cash, summary.TotalValue)
	if qty.IsZero() {
		return
	}

	var existing decimal.Decimal
	if pos := e.book.Position(symbol); pos != nil {
		existing = pos.MarketValue()
	}
	if err := e.riskMgr.CanOpen(symbol, qty, price, existing, summary.TotalValue, now); err != nil {
		var blocked *risk.BlockError
		if errors.As(err, &blocked) {
			e.logger.Info("entry blocked",
				zap.String("symbol", symbol),
				zap.String("rule", blocked.Rule))
			return
		}
		e.logger.Error("risk check failed", zap.Error(err))
		return
	}

	order, err := e.book.Buy(symbol, qty, price, stratName, reason, now)
	if err != nil {
		e.logger.Warn("buy rejected", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	e.mu.Lock()
	if _, held := e.entryFeatures[symbol]; !held {
		e.entryFeatures[symbol] = features
	}
	e.mu.Unlock()
	e.recordFill(*order)
}

func (e *Engine) closePosition(symbol string, qty, price decimal.Decimal, stratName, reason string, now time.Time) {
	order, err := e.book.Sell(symbol, qty, price, stratName, reason, now)
	if err != nil {
		e.logger.Warn("sell rejected", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	e.riskMgr.RecordRealized(order.PnL)

	e.mu.Lock()
	features, haveFeatures := e.entryFeatures[symbol]
	if e.book.Position(symbol) == nil {
		delete(e.entryFeatures, symbol)
	}
	e.mu.Unlock()

	if haveFeatures {
		e.feedback.Record(symbol, features, order.PnL, now)
	}
	e.recordFill(*order)
}

// closeOut flattens everything, finalizes the session, retrains the
// model, and persists. Runs inside the loop goroutine only.
func (e *Engine) closeOut(now time.Time, reason string) {
	e.setState(types.SessionClosing)
	e.logger.Info("closing session", zap.String("reason", reason))

	for symbol, pos := range e.book.Positions() {
		price := pos.LastPrice
		if price.IsZero() {
			price = pos.AvgPrice
		}
		e.closePosition(symbol, pos.Quantity, price, "scheduler", "session close", now)
	}
	e.book.Snapshot(now)

	if err := e.feedback.Train(now); err != nil && !errors.Is(err, learning.ErrInsufficientSamples) {
		e.logger.Warn("model training failed", zap.Error(err))
	}

	session := e.finalizeSession(now)
	if session != nil {
		e.emitSession(*session)
	}

	if e.store != nil {
		snap := persist.Snapshot{
			SavedAt:   now,
			Portfolio: e.book.Export(),
			Sessions:  e.Sessions(),
			Learning:  e.feedback.Export(),
		}
		if err := e.store.Save(snap); err != nil {
			e.logger.Error("snapshot save failed", zap.Error(err))
		}
	}

	e.setState(types.SessionIdle)
}

// finalizeSession stamps outcomes into the session record and appends
// it to history.
func (e *Engine) finalizeSession(now time.Time) *types.TradingSession {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	session := e.session
	e.session = nil

	history := e.book.History()
	orders := e.book.RecentOrders(0)
	report := analytics.Analyze(history, sessionOrders(orders, session.StartTime))

	session.EndTime = now
	session.FinalCapital = e.book.TotalValue()
	session.TotalPnL = session.FinalCapital.Sub(session.InitialCapital)
	session.TotalTrades = report.TradeCount
	session.WinningTrades = report.WinningTrades
	session.LosingTrades = report.LosingTrades
	session.MaxDrawdown = decimal.NewFromFloat(report.MaxDrawdown)
	session.ByStrategy = strategyBreakdown(sessionOrders(orders, session.StartTime))
	if e.sentimentN > 0 {
		session.SentimentScore = e.sentimentSum / float64(e.sentimentN)
	}
	session.Insights = e.insightsLocked(report)
	session.Closed = true

	e.sessions = append(e.sessions, *session)
	e.logger.Info("session closed",
		zap.String("sessionId", session.ID),
		zap.String("pnl", session.TotalPnL.StringFixed(2)),
		zap.Int("trades", session.TotalTrades))

	cp := *session
	return &cp
}

// insightsLocked summarizes the closed session. Caller holds e.mu.
func (e *Engine) insightsLocked(report analytics.Report) []string {
	var insights []string
	if report.TradeCount == 0 {
		insights = append(insights, "no closing trades this session")
	} else {
		insights = append(insights, fmt.Sprintf("%d closing trades, %d winners",
			report.TradeCount, report.WinningTrades))
	}
	if e.riskMgr.Tripped() {
		insights = append(insights, "daily loss breaker tripped")
	}
	if e.feedback.Trained() {
		insights = append(insights, fmt.Sprintf("outcome classifier trained on %d samples",
			e.feedback.SampleCount()))
	}
	return insights
}

func (e *Engine) shouldAutoRestart() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config.AutoRestart
}

// waitForNextDay blocks until the clock rolls past midnight and the
// end-of-day cutoff no longer applies. Returns false when stopped.
func (e *Engine) waitForNextDay(stopCh <-chan struct{}) bool {
	for e.pastEndOfDay(e.clock.Now()) {
		select {
		case <-stopCh:
			return false
		case <-e.clock.After(time.Minute):
		}
	}
	return true
}

// startNextDaySession opens a fresh session after an end-of-day close
// with auto-restart enabled.
func (e *Engine) startNextDaySession() {
	now := e.clock.Now()
	e.mu.Lock()
	e.session = &types.TradingSession{
		ID:             uuid.NewString(),
		Date:           now.Format("2006-01-02"),
		StartTime:      now,
		InitialCapital: e.book.TotalValue(),
		ByStrategy:     make(map[string]*types.StrategyPerformance),
	}
	e.entryFeatures = make(map[string]types.Features)
	e.sentimentSum, e.sentimentN = 0, 0
	e.cycleCount = 0
	e.state = types.SessionRunning
	e.mu.Unlock()
	e.riskMgr.ResetDaily(e.book.TotalValue())

	e.logger.Info("auto-restarted for next day")
}

func (e *Engine) collectPrices(_ time.Time) map[string]decimal.Decimal {
	e.mu.RLock()
	watchlist := e.config.Watchlist
	timeout := e.config.SymbolTimeout
	e.mu.RUnlock()

	prices := make(map[string]decimal.Decimal, len(watchlist))
	for _, symbol := range watchlist {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		price, err := e.market.GetPrice(ctx, symbol)
		cancel()
		if err != nil {
			continue
		}
		prices[symbol] = price
	}
	// Held symbols that fell off the watchlist still need marks.
	for symbol := range e.book.Positions() {
		if _, ok := prices[symbol]; ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		price, err := e.market.GetPrice(ctx, symbol)
		cancel()
		if err != nil {
			continue
		}
		prices[symbol] = price
	}
	return prices
}

// pastEndOfDay reports whether now is at or past the configured
// end-of-day cutoff.
func (e *Engine) pastEndOfDay(now time.Time) bool {
	e.mu.RLock()
	eod := e.config.EndOfDay
	e.mu.RUnlock()

	cutoff, err := parseEndOfDay(eod)
	if err != nil {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= cutoff
}

func (e *Engine) setState(state types.SessionState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

func (e *Engine) recordFill(order types.Order) {
	e.mu.RLock()
	cb := e.callbacks.OnOrder
	e.mu.RUnlock()
	if cb != nil {
		cb(order)
	}
}

func (e *Engine) emitSignal(sig types.Signal) {
	e.mu.RLock()
	cb := e.callbacks.OnSignal
	e.mu.RUnlock()
	if cb != nil {
		cb(sig)
	}
}

func (e *Engine) emitSession(session types.TradingSession) {
	e.mu.RLock()
	cb := e.callbacks.OnSession
	e.mu.RUnlock()
	if cb != nil {
		cb(session)
	}
}

// parseEndOfDay converts "15:55" into minutes since midnight.
func parseEndOfDay(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid end-of-day time %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// barsPerDay approximates how many cycles make a 6.5 hour trading day.
func barsPerDay(interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int((6*time.Hour + 30*time.Minute) / interval)
	if n < 1 {
		return 1
	}
	return n
}

func sessionOrders(orders []types.Order, since time.Time) []types.Order {
	out := make([]types.Order, 0, len(orders))
	for _, order := range orders {
		if !order.CreatedAt.Before(since) {
			out = append(out, order)
		}
	}
	return out
}

func strategyBreakdown(orders []types.Order) map[string]*types.StrategyPerformance {
	byStrategy := make(map[string]*types.StrategyPerformance)
	for _, order := range orders {
		if order.Status != types.OrderStatusFilled || order.Side != types.OrderSideSell {
			continue
		}
		perf, ok := byStrategy[order.Strategy]
		if !ok {
			perf = &types.StrategyPerformance{Strategy: order.Strategy}
			byStrategy[order.Strategy] = perf
		}
		perf.Trades++
		perf.PnL = perf.PnL.Add(order.PnL)
		if order.PnL.GreaterThan(decimal.Zero) {
			perf.Wins++
		}
	}
	return byStrategy
}

package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	applogger "LevelScan/pkg/logger"
)

// pairJob carries one (instrument, timeframe) through the scoring stage.
// Every field is a read-only snapshot taken before the pool starts.
type pairJob struct {
	key    domrepo.PairKey
	price  float64
	levels []models.Level
	ind    *models.IndicatorSet
	trend  *models.Trend
	fib    *models.FiboLevels
}

// candidate is one directional hypothesis that cleared the score floor.
type candidate struct {
	direction models.Direction
	score     models.Score
}

// buildJobs assembles one job per alerted pair. Pairs with no alert this
// cycle are skipped entirely; they produce no signal.
func (s *Sweep) buildJobs(
	series map[domrepo.PairKey][]models.Candle,
	merged []models.Level,
	sets map[domrepo.PairKey]*models.IndicatorSet,
	trends map[string]models.Trend,
	alertBatch []models.Alert,
) []pairJob {
	alerted := make(map[domrepo.PairKey]struct{}, len(alertBatch))
	for _, a := range alertBatch {
		alerted[domrepo.PairKey{Symbol: a.Symbol, Timeframe: domrepo.Timeframe(a.Timeframe)}] = struct{}{}
	}

	byPair := make(map[domrepo.PairKey][]models.Level)
	for _, lvl := range merged {
		key := domrepo.PairKey{Symbol: lvl.Symbol, Timeframe: domrepo.Timeframe(lvl.Timeframe)}
		byPair[key] = append(byPair[key], lvl)
	}

	jobs := make([]pairJob, 0, len(alerted))
	for key, candles := range series {
		if _, ok := alerted[key]; !ok {
			continue
		}
		if len(candles) == 0 {
			continue
		}
		var tr *models.Trend
		if t, ok := trends[key.Symbol]; ok {
			tr = &t
		}
		jobs = append(jobs, pairJob{
			key:    key,
			price:  candles[len(candles)-1].Close,
			levels: byPair[key],
			ind:    sets[key],
			trend:  tr,
			fib:    s.deps.FiboEngine.Calculate(key.Symbol, string(key.Timeframe), candles),
		})
	}
	return jobs
}

// analyze fans jobs over a bounded pool, scores both directions per pair
// and reduces the surviving candidates to one signal per pair.
func (s *Sweep) analyze(ctx context.Context, jobs []pairJob, caps []models.MarketCapPoint) []models.Signal {
	if len(jobs) == 0 {
		return nil
	}
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	type result struct {
		job  pairJob
		cand []candidate
	}

	jobCh := make(chan pairJob)
	resCh := make(chan result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				resCh <- result{job: job, cand: s.scorePair(job, caps)}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(resCh)

	now := time.Now().UnixMilli()
	var signals []models.Signal
	for res := range resCh {
		s.deps.Metrics.RecordPairAnalyzed(string(res.job.key.Timeframe))
		s.deps.Metrics.RecordLastPrice(res.job.key.Symbol, res.job.price)
		if sig, ok := reduce(res.job, res.cand, now); ok {
			signals = append(signals, sig)
		}
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Symbol != signals[j].Symbol {
			return signals[i].Symbol < signals[j].Symbol
		}
		return signals[i].Timeframe < signals[j].Timeframe
	})
	return signals
}

// scorePair evaluates long then short for one pair. A panic in scoring is
// contained to the pair: logged, counted, and the pair skipped.
func (s *Sweep) scorePair(job pairJob, caps []models.MarketCapPoint) (out []candidate) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			s.deps.Metrics.RecordError("analyze_pair")
			s.deps.Logger.Error("sweep: pair analysis failed",
				applogger.String("symbol", job.key.Symbol),
				applogger.String("tf", string(job.key.Timeframe)),
				applogger.Any("panic", r),
			)
		}
	}()

	for _, dir := range []models.Direction{models.DirectionLong, models.DirectionShort} {
		score := s.deps.Scorer.Evaluate(job.trend, job.levels, job.ind, job.fib, caps, models.Hypothesis{
			Symbol:       job.key.Symbol,
			Timeframe:    string(job.key.Timeframe),
			Direction:    dir,
			Price:        job.price,
			CurrentPrice: job.price,
		})
		if score.Value < s.cfg.MinScore {
			continue
		}
		out = append(out, candidate{direction: dir, score: score})
	}
	return out
}

// reduce folds a pair's surviving candidates into exactly one signal: the
// max-score candidate is the base, direction labels concatenate in
// evaluation order, and detail lines are de-duplicated keeping first
// occurrence order.
func reduce(job pairJob, cands []candidate, ts int64) (models.Signal, bool) {
	if len(cands) == 0 {
		return models.Signal{}, false
	}
	base := cands[0]
	for _, c := range cands[1:] {
		if c.score.Value > base.score.Value {
			base = c
		}
	}

	labels := make([]string, 0, len(cands))
	seen := make(map[string]struct{})
	var details []string
	appendDetails := func(lines []string) {
		for _, line := range lines {
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			details = append(details, line)
		}
	}
	appendDetails(base.score.Details)
	for _, c := range cands {
		labels = append(labels, string(c.direction))
		appendDetails(c.score.Details)
	}

	return models.Signal{
		Symbol:         job.key.Symbol,
		Timeframe:      string(job.key.Timeframe),
		SignalType:     strings.Join(labels, "+"),
		CurrentPrice:   job.price,
		Score:          base.score.Value,
		Recommendation: base.score.Recommendation,
		Details:        details,
		Time:           ts,
	}, true
}

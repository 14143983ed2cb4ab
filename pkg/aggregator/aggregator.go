// Package aggregator turns raw telemetry records into skill-update
// candidates. Records are grouped by source and target (known skill or
// virtual domain), and per-selector and per-workflow statistics are
// folded attempt-weighted: rates are always recomputed from the
// accumulated success and attempt counts, never averaged across
// batches of different sizes.
package aggregator

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/store"
	"github.com/skillminer/skillminer/pkg/telemetry"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

// Config holds aggregation tuning knobs.
type Config struct {
	// MinSelectorUsage drops selectors observed fewer times than this
	// from the emitted candidate. Zero or one keeps everything.
	MinSelectorUsage int `mapstructure:"min_selector_usage"`
}

// Aggregator folds raw telemetry records into candidates.
type Aggregator struct {
	cfg Config
}

// New creates an Aggregator with the given configuration.
func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Result reports the outcome of one aggregation batch.
type Result struct {
	// Candidates are the non-empty candidates mined from the batch, in
	// group discovery order.
	Candidates []mining.Candidate
	// Skipped counts malformed records that were dropped.
	Skipped int
	// SkipErrors collects the validation errors of skipped records.
	// Always non-fatal; reported for diagnostics only.
	SkipErrors error
	// Merged counts candidates folded into the store by Run.
	Merged int
}

// group accumulates statistics for one (source, target) key, keeping
// selector and workflow discovery order.
type group struct {
	source        mining.Source
	virtualDomain string
	targetSkillID string
	urlSample     string
	snapshotID    string

	selectorOrder []string
	selectors     map[string]*selectorAcc
	workflowOrder []string
	workflows     map[string]*workflowAcc
}

type selectorAcc struct {
	stat mining.SelectorStat
}

type workflowAcc struct {
	stat mining.WorkflowStat
}

// Aggregate folds a batch of raw records into candidates. Malformed
// records are skipped and counted; they never abort the batch. Groups
// left empty after the noise filter are dropped, not emitted.
func (a *Aggregator) Aggregate(ctx context.Context, records []mining.RawRecord) Result {
	log := logger.G(ctx)

	groups := make(map[string]*group)
	var order []string
	var result Result

	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			result.Skipped++
			result.SkipErrors = multierror.Append(result.SkipErrors, errors.Wrapf(err, "record %d", i))
			log.WithError(err).WithField("record", i).Debug("skipping malformed telemetry record")
			continue
		}

		key := r.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &group{
				source:        r.Source,
				virtualDomain: r.VirtualDomain,
				targetSkillID: r.TargetSkillID,
				selectors:     make(map[string]*selectorAcc),
				workflows:     make(map[string]*workflowAcc),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.observe(r)
	}

	for _, key := range order {
		c, ok := groups[key].candidate(a.cfg.MinSelectorUsage)
		if !ok {
			continue
		}
		result.Candidates = append(result.Candidates, c)
	}

	log.WithFields(map[string]any{
		"records":    len(records),
		"skipped":    result.Skipped,
		"candidates": len(result.Candidates),
	}).Info("aggregated telemetry batch")

	return result
}

// Run aggregates a batch and merges every mined candidate into the
// store. Statistics for an already-known identity fold into the
// existing record; status and notes are never touched.
func (a *Aggregator) Run(ctx context.Context, st store.CandidateStore, records []mining.RawRecord) (Result, error) {
	var result Result
	err := telemetry.WithSpan(ctx, "aggregator.Run", func(ctx context.Context) error {
		result = a.Aggregate(ctx, records)
		for _, c := range result.Candidates {
			if _, err := st.Merge(ctx, c); err != nil {
				return errors.Wrapf(err, "failed to merge candidate for %s", c.Identity())
			}
			result.Merged++
		}
		return nil
	}, attribute.Int("telemetry.records", len(records)))

	return result, err
}

func (g *group) observe(r *mining.RawRecord) {
	if g.urlSample == "" {
		g.urlSample = r.URL
	}
	if g.snapshotID == "" {
		g.snapshotID = r.SnapshotID
	}

	switch r.Kind {
	case mining.KindSelector:
		acc, ok := g.selectors[r.Selector]
		if !ok {
			acc = &selectorAcc{stat: mining.SelectorStat{
				Name:     r.SelectorName,
				Selector: r.Selector,
			}}
			g.selectors[r.Selector] = acc
			g.selectorOrder = append(g.selectorOrder, r.Selector)
		}
		acc.stat.UsageCount++
		if r.Outcome == mining.OutcomeSuccess {
			acc.stat.SuccessCount++
		}
		acc.stat.SuccessRate = float64(acc.stat.SuccessCount) / float64(acc.stat.UsageCount)
		if r.Timestamp.After(acc.stat.LastSeenAt) {
			acc.stat.LastSeenAt = r.Timestamp
		}
		if acc.stat.Name == "" {
			acc.stat.Name = r.SelectorName
		}
	case mining.KindWorkflow:
		acc, ok := g.workflows[r.WorkflowName]
		if !ok {
			acc = &workflowAcc{stat: mining.WorkflowStat{
				Name:        r.WorkflowName,
				Description: r.Description,
			}}
			g.workflows[r.WorkflowName] = acc
			g.workflowOrder = append(g.workflowOrder, r.WorkflowName)
		}
		acc.stat.AttemptCount++
		if r.Outcome == mining.OutcomeSuccess {
			acc.stat.SuccessCount++
		}
		acc.stat.SuccessRate = float64(acc.stat.SuccessCount) / float64(acc.stat.AttemptCount)
		if len(r.Steps) > 0 {
			acc.stat.Steps = append([]string(nil), r.Steps...)
		}
		if acc.stat.Description == "" {
			acc.stat.Description = r.Description
		}
		if r.FailurePattern != "" {
			acc.stat.FailurePatterns = mining.MergePatterns(acc.stat.FailurePatterns, []string{r.FailurePattern})
		}
	}
}

// candidate materializes the group into a Candidate, applying the
// selector noise filter. Returns false when nothing survives.
func (g *group) candidate(minSelectorUsage int) (mining.Candidate, bool) {
	c := mining.Candidate{
		Source:        g.source,
		VirtualDomain: g.virtualDomain,
		TargetSkillID: g.targetSkillID,
		URLSample:     g.urlSample,
		SnapshotID:    g.snapshotID,
		Status:        mining.StatusCandidate,
	}

	for _, sel := range g.selectorOrder {
		stat := g.selectors[sel].stat
		if stat.UsageCount < minSelectorUsage {
			continue
		}
		c.Selectors = append(c.Selectors, stat)
	}
	for _, name := range g.workflowOrder {
		c.Workflows = append(c.Workflows, g.workflows[name].stat)
	}

	if len(c.Selectors) == 0 && len(c.Workflows) == 0 {
		return mining.Candidate{}, false
	}
	return c, true
}

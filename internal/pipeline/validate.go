package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"sensoretl/internal/model"
	"sensoretl/internal/storage"
)

// LabelUnknown labels NULL failure_within_7_days values.
const LabelUnknown = "unknown"

// LabelShare is one bucket of the failure-label distribution.
type LabelShare struct {
	Label   string
	Count   int64
	Percent float64
}

// Report is the post-load validation result.
type Report struct {
	// Orphans maps each child table to rows whose machine_id has no parent.
	Orphans map[string]int64
	// Labels is the failure_within_7_days distribution, sorted by label.
	Labels []LabelShare
	// Counts is the final row count per table.
	Counts map[string]int64
	// Errors lists checks that could not run. They never abort the pipeline.
	Errors []string
}

// OrphanTotal sums Orphans.
func (r Report) OrphanTotal() int64 {
	var n int64
	for _, v := range r.Orphans {
		n += v
	}
	return n
}

// Validate checks the loaded store. It only reads and logs: a failing query
// is recorded in Report.Errors and the remaining checks still run.
func Validate(ctx context.Context, repo storage.MultiRepository, log *zap.Logger) Report {
	rep := Report{
		Orphans: make(map[string]int64, len(model.ChildTables)),
		Counts:  make(map[string]int64, len(model.LoadOrder)),
	}
	fail := func(check string, err error) {
		log.Error("validation check failed", zap.String("check", check), zap.Error(err))
		rep.Errors = append(rep.Errors, check+": "+err.Error())
	}

	for _, child := range model.ChildTables {
		n, err := repo.CountOrphans(ctx, child, model.TableMachines, "machine_id")
		if err != nil {
			fail("orphans "+child, err)
			continue
		}
		rep.Orphans[child] = n
		if n > 0 {
			log.Warn("orphaned foreign keys", zap.String("table", child), zap.Int64("rows", n))
		}
	}
	if len(rep.Orphans) == len(model.ChildTables) && rep.OrphanTotal() == 0 {
		log.Info("referential integrity ok")
	}

	groups, err := repo.GroupCounts(ctx, model.TableFailurePredictions, "failure_within_7_days")
	if err != nil {
		fail("label distribution", err)
	} else {
		rep.Labels = labelShares(groups)
		for _, l := range rep.Labels {
			log.Info("failure label distribution",
				zap.String("label", l.Label),
				zap.Int64("count", l.Count),
				zap.Float64("percent", l.Percent))
		}
	}

	for _, t := range model.LoadOrder {
		n, err := repo.CountRows(ctx, t)
		if err != nil {
			fail("count "+t, err)
			continue
		}
		rep.Counts[t] = n
		log.Info("final row count", zap.String("table", t), zap.Int64("rows", n))
	}
	return rep
}

// labelShares folds backend-specific boolean encodings into true/false/unknown.
func labelShares(groups []storage.GroupCount) []LabelShare {
	counts := map[string]int64{}
	var total int64
	for _, g := range groups {
		label := LabelUnknown
		if b, ok := storage.NormalizeBool(g.Value); ok {
			if b {
				label = "true"
			} else {
				label = "false"
			}
		} else if g.Value != nil {
			label = storage.NormalizeValue(g.Value)
		}
		counts[label] += g.Count
		total += g.Count
	}

	out := make([]LabelShare, 0, len(counts))
	for label, n := range counts {
		share := LabelShare{Label: label, Count: n}
		if total > 0 {
			share.Percent = float64(n) * 100 / float64(total)
		}
		out = append(out, share)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

package application

import (
	"context"
	"encoding/json"
	"os"

	"github.com/shopspring/decimal"

	"github.com/skeptomenos/portfolio-prism-engine/internal/broker"
	"github.com/skeptomenos/portfolio-prism-engine/internal/pipeline"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
	"github.com/skeptomenos/portfolio-prism-engine/internal/store"
)

func (d *Dependencies) handleSyncPortfolio(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	portfolioID, err := d.Store.EnsurePortfolio(ctx, stringParam(cmd, "portfolio", defaultPortfolio))
	if err != nil {
		return nil, err
	}

	positions, err := runBlocking(ctx, d.Registry.Pool(), func(ctx context.Context) ([]broker.Position, error) {
		return d.Registry.Bridge().FetchPortfolio(ctx)
	})
	if err != nil {
		return nil, toDispatchError(err)
	}

	stored := make([]store.Position, len(positions))
	for i, p := range positions {
		stored[i] = store.Position{
			PortfolioID:  portfolioID,
			ISIN:         p.ISIN,
			Name:         p.Name,
			Quantity:     decimal.NewFromFloat(p.Quantity),
			AverageCost:  decimal.NewFromFloat(p.AverageCost),
			CurrentPrice: decimal.NewFromFloat(p.CurrentPrice),
			IsETF:        d.isETF(p.ISIN),
		}
	}

	if err := d.Store.ReplacePortfolio(ctx, portfolioID, stored); err != nil {
		return nil, err
	}

	return map[string]interface{}{"portfolio_id": portfolioID, "position_count": len(stored)}, nil
}

func (d *Dependencies) handleRunPipeline(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	portfolioID, err := d.Store.EnsurePortfolio(ctx, stringParam(cmd, "portfolio", defaultPortfolio))
	if err != nil {
		return nil, err
	}

	priorValue := decimal.Zero
	if prior, ok := d.lastBreakdown(portfolioID); ok {
		priorValue = prior.Summary.TotalValue
	}

	breakdown, err := runBlocking(ctx, d.Registry.Pool(), func(ctx context.Context) (pipeline.Breakdown, error) {
		return d.Orchestrator.Run(ctx, portfolioID, priorValue)
	})
	status := "success"
	if err != nil {
		status = "failure"
	}
	if d.Metrics != nil {
		d.Metrics.RecordPipelineRun(status)
	}
	if err != nil {
		return nil, err
	}

	d.setLastBreakdown(portfolioID, breakdown)
	return breakdownData(breakdown), nil
}

func (d *Dependencies) handleGetDashboardData(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	portfolioID, err := d.Store.EnsurePortfolio(ctx, stringParam(cmd, "portfolio", defaultPortfolio))
	if err != nil {
		return nil, err
	}

	breakdown, ok := d.lastBreakdown(portfolioID)
	if !ok {
		return map[string]interface{}{"has_data": false}, nil
	}
	data := breakdownData(breakdown)
	data["has_data"] = true
	return data, nil
}

func (d *Dependencies) handleGetPipelineReport(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	body, err := os.ReadFile(d.Config.HealthReportPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{"has_report": false}, nil
		}
		return nil, err
	}

	var health pipeline.Health
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"has_report":         true,
		"run_id":             health.RunID,
		"started_at":         health.StartedAt,
		"finished_at":        health.FinishedAt,
		"status":             health.Status,
		"warnings":           health.Warnings,
		"leaf_count":         health.LeafCount,
		"needs_review_count": health.NeedsReview,
	}, nil
}

func breakdownData(b pipeline.Breakdown) map[string]interface{} {
	return map[string]interface{}{
		"summary": map[string]interface{}{
			"total_value":        b.Summary.TotalValue.String(),
			"total_gain":         b.Summary.TotalGain.String(),
			"day_change":         b.Summary.DayChange.String(),
			"day_change_percent": b.Summary.DayChangePercent,
		},
		"sector_exposure": b.SectorExposure,
		"region_exposure": b.RegionExposure,
		"top_holdings":    leafData(b.TopHoldings),
		"warnings":        b.Warnings,
	}
}

func leafData(leaves []pipeline.Leaf) []map[string]interface{} {
	out := make([]map[string]interface{}, len(leaves))
	for i, l := range leaves {
		out[i] = map[string]interface{}{
			"isin":         l.ISIN,
			"name":         l.Name,
			"ticker":       l.Ticker,
			"weight":       l.Weight,
			"value":        l.Value.String(),
			"sector":       l.Sector,
			"region":       l.Region,
			"currency":     l.Currency,
			"source":       l.Source,
			"needs_review": l.NeedsReview,
		}
	}
	return out
}

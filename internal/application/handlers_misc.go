package application

import (
	"context"
	"os"

	"github.com/skeptomenos/portfolio-prism-engine/internal/adapters"
	"github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"
	"github.com/skeptomenos/portfolio-prism-engine/internal/identity"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
)

// handleUploadHoldings ingests a user-supplied holdings set for isin, either
// inline as a JSON "holdings" array or, when "filename" is given instead, as
// a CSV file under the engine's data directory. A filename is resolved
// through Config.UploadedHoldingsPath (and therefore rejected as
// INVALID_COMMAND on any directory-traversal attempt) before the file is
// ever opened (spec.md §8).
func (d *Dependencies) handleUploadHoldings(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	isin, ok := requiredString(cmd, "isin")
	if !ok || !identity.ValidateISIN(isin) {
		return nil, dispatch.Fail(protocol.CodeTickerInvalid, "isin is missing or invalid")
	}

	var holdings []adapters.Holding

	if filename, ok := requiredString(cmd, "filename"); ok {
		path, err := d.Config.UploadedHoldingsPath(filename)
		if err != nil {
			return nil, dispatch.Fail(protocol.CodeInvalidCommand, err.Error())
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, dispatch.Fail(protocol.CodeInvalidCommand, "holdings file could not be opened")
		}
		defer file.Close()
		holdings, err = adapters.ParseUploadedHoldingsCSV(file)
		if err != nil {
			return nil, dispatch.Fail(protocol.CodeInvalidCommand, "holdings file did not parse: "+err.Error())
		}
	} else {
		rawHoldings, _ := cmd.Payload["holdings"].([]interface{})
		holdings = make([]adapters.Holding, 0, len(rawHoldings))
		for _, raw := range rawHoldings {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			holdings = append(holdings, adapters.Holding{
				Name:     stringField(m, "name"),
				ISIN:     stringField(m, "isin"),
				Ticker:   stringField(m, "ticker"),
				Weight:   floatField(m, "weight"),
				Location: stringField(m, "location"),
				Exchange: stringField(m, "exchange"),
			})
		}
	}

	if len(holdings) == 0 {
		return nil, dispatch.Fail(protocol.CodeInvalidCommand, "holdings must be a non-empty array")
	}

	d.ManualUpload.Upload(isin, holdings)
	return map[string]interface{}{"isin": isin, "holding_count": len(holdings)}, nil
}

func (d *Dependencies) handleSetHiveContribution(ctx context.Context, cmd protocol.Command) (map[string]interface{}, error) {
	enabled := boolParam(cmd, "enabled")
	d.Resolver.SetHiveContribution(enabled)
	return map[string]interface{}{"hive_contribution_enabled": enabled}, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

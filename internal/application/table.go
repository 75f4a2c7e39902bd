package application

import "github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"

// NewTable builds the dispatch table binding every spec.md §4.3 command
// name to its handler.
func NewTable(d *Dependencies) *dispatch.Table {
	return dispatch.NewTable(map[string]dispatch.Handler{
		"get_health":                d.handleGetHealth,
		"tr_get_auth_status":        d.handleAuthStatus,
		"tr_login":                  d.handleLogin,
		"tr_submit_2fa":             d.handleSubmit2FA,
		"tr_try_restore_session":    d.handleTryRestoreSession,
		"tr_logout":                 d.handleLogout,
		"tr_get_stored_credentials": d.handleGetStoredCredentials,
		"sync_portfolio":            d.handleSyncPortfolio,
		"run_pipeline":              d.handleRunPipeline,
		"get_dashboard_data":        d.handleGetDashboardData,
		"upload_holdings":           d.handleUploadHoldings,
		"set_hive_contribution":     d.handleSetHiveContribution,
		"get_pipeline_report":       d.handleGetPipelineReport,
	})
}

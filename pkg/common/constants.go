package common

// Autopilot log categories. Every row in autopilot_logs carries one of these
// so the API can filter the audit trail.
const (
	LogCategoryCycle     = "cycle"
	LogCategorySchedule  = "schedule"
	LogCategorySafety    = "safety"
	LogCategoryOrder     = "order"
	LogCategoryExecution = "execution"
	LogCategoryAdvisory  = "advisory"
	LogCategoryError     = "error"
)

package config

// Progress bookkeeping thresholds.
const (
	// ProgressFallbackPercentPerHour values one study hour when a course
	// has no parsable time estimate.
	ProgressFallbackPercentPerHour = 2.0

	// ProgressMaxAutoGain bounds the percentage gain one time-driven
	// update may apply.
	ProgressMaxAutoGain = 10.0

	// ProgressBulkMinGain is the minimum improvement before the periodic
	// reconciliation job rewrites a stored percentage.
	ProgressBulkMinGain = 5.0

	// ProgressComplete is the percentage at which a course counts as
	// completed.
	ProgressComplete = 100.0
)

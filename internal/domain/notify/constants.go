package notify

// Priorities.
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// Delivery channels.
const (
	ChannelEmail    = "EMAIL"
	ChannelInApp    = "IN_APP"
	ChannelChat     = "CHAT"
	ChannelCalendar = "CALENDAR"
	ChannelSMS      = "SMS"
)

// Categories.
const (
	CategoryPhaseOpened       = "phase_opened"
	CategoryReminder          = "review_reminder"
	CategoryEscalation        = "review_escalation"
	CategoryTeamReady         = "team_ready"
	CategoryReviewReceived    = "review_received"
	CategoryCalibrationReady  = "calibration_ready"
	CategoryResultsAvailable  = "results_available"
	CategoryRecentlyCompleted = "recently_completed"
	CategoryCheckinReminder   = "checkin_reminder"
	CategoryWeeklyDigest      = "weekly_digest"
)

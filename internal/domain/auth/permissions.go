package auth

const (
	RoleEmployee    = "employee"
	RoleManager     = "manager"
	RoleHR          = "hr"
	RoleLeadership  = "leadership"
	RoleSystemAdmin = "system_admin"
)

const (
	PermReviewsRead       = "reviews.read"
	PermReviewsWrite      = "reviews.write"
	PermReviewsSubmit     = "reviews.submit"
	PermReviewsCalibrate  = "reviews.calibrate"
	PermReviewsAdmin      = "reviews.admin"
	PermNotificationsRead = "notifications.read"
	PermAuditRead         = "audit.read"
	PermSystemAdmin       = "admin.system"
)

var DefaultPermissions = []string{
	PermReviewsRead,
	PermReviewsWrite,
	PermReviewsSubmit,
	PermReviewsCalibrate,
	PermReviewsAdmin,
	PermNotificationsRead,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermReviewsRead,
		PermReviewsWrite,
		PermReviewsSubmit,
		PermNotificationsRead,
	},
	RoleManager: {
		PermReviewsRead,
		PermReviewsWrite,
		PermReviewsSubmit,
		PermNotificationsRead,
	},
	RoleLeadership: {
		PermReviewsRead,
		PermReviewsCalibrate,
		PermNotificationsRead,
		PermAuditRead,
	},
	RoleHR: {
		PermReviewsRead,
		PermReviewsWrite,
		PermReviewsSubmit,
		PermReviewsCalibrate,
		PermReviewsAdmin,
		PermNotificationsRead,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
	},
}

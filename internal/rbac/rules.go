package rbac

// Default policy for the grading service. Learners read their own grades;
// staff manage course structures and scores and run batch grading.
var RolePermissions = map[string][]string{
	"learner": {
		"course:view",
		"grade:view-own",
		"user:change_password",
	},
	"staff": {
		"course:import",
		"course:view",
		"score:write",
		"grade:view-own",
		"grade:view-all",
		"grade:batch",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}

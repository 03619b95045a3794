package repository

import (
	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
	"github.com/mohammadpnp/tabular-import/internal/domain/targets"
)

// tableSpec maps an entity type onto its Postgres table. Columns maps
// schema field keys to column names; lookupColumns are tried in order when
// a reference field points at this entity type.
type tableSpec struct {
	table         string
	columns       map[string]string
	lookupColumns []string
}

var tableSpecs = map[domain.EntityType]tableSpec{
	targets.Contact: {
		table: "contacts",
		columns: map[string]string{
			"email":      "email",
			"first_name": "first_name",
			"last_name":  "last_name",
			"phone":      "phone",
			"job_title":  "job_title",
			"customer":   "customer_id",
			"owner":      "owner_id",
			"status":     "status",
			"birthday":   "birthday",
			"subscribed": "subscribed",
		},
		lookupColumns: []string{"email"},
	},
	targets.Opportunity: {
		table: "opportunities",
		columns: map[string]string{
			"title":      "title",
			"customer":   "customer_id",
			"owner":      "owner_id",
			"amount":     "amount",
			"stage":      "stage",
			"close_date": "close_date",
		},
		lookupColumns: []string{"title"},
	},
	targets.Candidate: {
		table: "candidates",
		columns: map[string]string{
			"email":           "email",
			"full_name":       "full_name",
			"phone":           "phone",
			"position":        "position_id",
			"recruiter":       "recruiter_id",
			"source":          "source",
			"applied_on":      "applied_on",
			"expected_salary": "expected_salary",
		},
		lookupColumns: []string{"email"},
	},
	targets.Employee: {
		table: "employees",
		columns: map[string]string{
			"employee_number": "employee_number",
			"email":           "email",
			"first_name":      "first_name",
			"last_name":       "last_name",
			"position":        "position_id",
			"manager":         "manager_id",
			"hire_date":       "hire_date",
			"employment_type": "employment_type",
			"salary":          "salary",
			"active":          "active",
		},
		lookupColumns: []string{"email", "employee_number"},
	},
	targets.Attendance: {
		table: "attendance",
		columns: map[string]string{
			"employee":      "employee_id",
			"date":          "date",
			"activity_type": "activity_type_id",
			"hours":         "hours",
			"status":        "status",
			"note":          "note",
		},
	},
	targets.User: {
		table:         "users",
		lookupColumns: []string{"email", "name"},
	},
	targets.Customer: {
		table:         "customers",
		lookupColumns: []string{"name", "email"},
	},
	targets.Position: {
		table:         "positions",
		lookupColumns: []string{"title"},
	},
	targets.ActivityType: {
		table:         "activity_types",
		lookupColumns: []string{"name", "code"},
	},
}

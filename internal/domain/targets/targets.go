// Package targets declares the entity types operators can import and the
// lookup-only entity types their reference fields point at.
package targets

import domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"

const (
	Contact     domain.EntityType = "contact"
	Opportunity domain.EntityType = "opportunity"
	Candidate   domain.EntityType = "candidate"
	Employee    domain.EntityType = "employee"
	Attendance  domain.EntityType = "attendance"

	User         domain.EntityType = "user"
	Customer     domain.EntityType = "customer"
	Position     domain.EntityType = "position"
	ActivityType domain.EntityType = "activity_type"
)

func Schemas() []domain.Schema {
	return []domain.Schema{
		ContactSchema(),
		OpportunitySchema(),
		CandidateSchema(),
		EmployeeSchema(),
		AttendanceSchema(),
	}
}

func LookupEntities() []domain.EntityType {
	return []domain.EntityType{User, Customer, Position, ActivityType}
}

// NewRegistry returns the registry of every built-in import target.
func NewRegistry() (*domain.Registry, error) {
	return domain.NewRegistry(Schemas(), LookupEntities()...)
}

func ContactSchema() domain.Schema {
	return domain.Schema{
		EntityType: Contact,
		NaturalKey: []string{"email"},
		Fields: []domain.FieldDefinition{
			{Key: "email", Label: "Email", Description: "Primary e-mail address, used to match existing contacts", Required: true, Type: domain.FieldEmail},
			{Key: "first_name", Label: "First name", Required: true, Type: domain.FieldString},
			{Key: "last_name", Label: "Last name", Type: domain.FieldString},
			{Key: "phone", Label: "Phone", Type: domain.FieldString},
			{Key: "job_title", Label: "Job title", Type: domain.FieldString},
			{Key: "customer", Label: "Company", Description: "Customer the contact works for, by name", Type: domain.FieldReference, References: Customer},
			{Key: "owner", Label: "Owner", Description: "Responsible user, by e-mail", Type: domain.FieldReference, References: User},
			{Key: "status", Label: "Status", Type: domain.FieldEnum, Options: []string{"lead", "prospect", "customer", "inactive"}, Default: "lead"},
			{Key: "birthday", Label: "Birthday", Type: domain.FieldDate},
			{Key: "subscribed", Label: "Subscribed", Description: "Accepts marketing e-mail", Type: domain.FieldBoolean},
		},
	}
}

func OpportunitySchema() domain.Schema {
	return domain.Schema{
		EntityType: Opportunity,
		NaturalKey: []string{"title", "customer"},
		Fields: []domain.FieldDefinition{
			{Key: "title", Label: "Title", Required: true, Type: domain.FieldString},
			{Key: "customer", Label: "Customer", Description: "Customer, by name", Required: true, Type: domain.FieldReference, References: Customer},
			{Key: "owner", Label: "Owner", Description: "Responsible user, by e-mail", Type: domain.FieldReference, References: User},
			{Key: "amount", Label: "Amount", Type: domain.FieldNumber},
			{Key: "stage", Label: "Stage", Type: domain.FieldEnum, Options: []string{"qualification", "proposal", "negotiation", "won", "lost"}, Default: "qualification"},
			{Key: "close_date", Label: "Expected close date", Type: domain.FieldDate},
		},
	}
}

func CandidateSchema() domain.Schema {
	return domain.Schema{
		EntityType: Candidate,
		NaturalKey: []string{"email"},
		Fields: []domain.FieldDefinition{
			{Key: "email", Label: "Email", Required: true, Type: domain.FieldEmail},
			{Key: "full_name", Label: "Full name", Required: true, Type: domain.FieldString},
			{Key: "phone", Label: "Phone", Type: domain.FieldString},
			{Key: "position", Label: "Position", Description: "Open position applied for, by title", Type: domain.FieldReference, References: Position},
			{Key: "recruiter", Label: "Recruiter", Description: "Recruiting user, by e-mail", Type: domain.FieldReference, References: User},
			{Key: "source", Label: "Source", Type: domain.FieldEnum, Options: []string{"referral", "job_board", "agency", "direct"}},
			{Key: "applied_on", Label: "Applied on", Type: domain.FieldDate},
			{Key: "expected_salary", Label: "Expected salary", Type: domain.FieldNumber},
		},
	}
}

func EmployeeSchema() domain.Schema {
	return domain.Schema{
		EntityType: Employee,
		NaturalKey: []string{"employee_number"},
		Fields: []domain.FieldDefinition{
			{Key: "employee_number", Label: "Employee number", Required: true, Type: domain.FieldString},
			{Key: "email", Label: "Email", Required: true, Type: domain.FieldEmail},
			{Key: "first_name", Label: "First name", Required: true, Type: domain.FieldString},
			{Key: "last_name", Label: "Last name", Required: true, Type: domain.FieldString},
			{Key: "position", Label: "Position", Description: "Position title", Type: domain.FieldReference, References: Position},
			{Key: "manager", Label: "Manager", Description: "Manager, by e-mail or employee number", Type: domain.FieldReference, References: Employee},
			{Key: "hire_date", Label: "Hire date", Required: true, Type: domain.FieldDate},
			{Key: "employment_type", Label: "Employment type", Type: domain.FieldEnum, Options: []string{"full_time", "part_time", "contractor", "intern"}, Default: "full_time"},
			{Key: "salary", Label: "Salary", Type: domain.FieldNumber},
			{Key: "active", Label: "Active", Type: domain.FieldBoolean},
		},
	}
}

func AttendanceSchema() domain.Schema {
	return domain.Schema{
		EntityType: Attendance,
		NaturalKey: []string{"employee", "date"},
		Fields: []domain.FieldDefinition{
			{Key: "employee", Label: "Employee", Description: "Employee, by e-mail or employee number", Required: true, Type: domain.FieldReference, References: Employee},
			{Key: "date", Label: "Date", Required: true, Type: domain.FieldDate},
			{Key: "activity_type", Label: "Activity type", Type: domain.FieldReference, References: ActivityType},
			{Key: "hours", Label: "Hours", Type: domain.FieldNumber},
			{Key: "status", Label: "Status", Type: domain.FieldEnum, Options: []string{"present", "absent", "leave", "remote"}, Default: "present"},
			{Key: "note", Label: "Note", Type: domain.FieldString},
		},
	}
}

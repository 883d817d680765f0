package auth

import (
	"context"
	"strings"

	"github.com/classroll/apiserver/types"
)

// Resource names a protected collection.
type Resource string

const (
	ResourceEvaluations   Resource = "evaluations"
	ResourceGrades        Resource = "grades"
	ResourceActivities    Resource = "activities"
	ResourceAttendance    Resource = "attendance"
	ResourceClasses       Resource = "classes"
	ResourceStudents      Resource = "students"
	ResourceTeachers      Resource = "teachers"
	ResourceSubjects      Resource = "subjects"
	ResourceSchoolYears   Resource = "school-years"
	ResourceStudentStatus Resource = "student-status"
	ResourceVideos        Resource = "videos"
	ResourceTokens        Resource = "tokens"
	ResourceTokenAdmin    Resource = "token-admin"
	ResourceUsers         Resource = "users"
	ResourceAdminContacts Resource = "admin-contacts"
)

// Action is what a principal wants to do with a resource.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int
	Email  string
	Role   string

	// System is the system the credential addresses. Session tokens carry
	// the user's system access, which may be "both".
	System types.System

	// Kind is KindSession or KindAPI.
	Kind string

	// TokenID is set for API tokens.
	TokenID string
}

func (p Principal) IsAdmin() bool {
	return strings.EqualFold(p.Role, types.RoleAdmin)
}

type scope int

const (
	scopeNone scope = iota
	scopeShared
	scopeEvaluation
	scopeGrading
)

type rule struct {
	scope scope

	// roles maps a role to the actions it may take.
	roles map[string][]Action
}

var (
	readOnly   = []Action{ActionRead}
	readWrite  = []Action{ActionRead, ActionWrite}
	viewers    = map[string][]Action{types.RoleTeacher: readOnly, types.RoleUser: readOnly}
	teacherRW  = map[string][]Action{types.RoleTeacher: readWrite, types.RoleUser: readOnly}
	everyoneRW = map[string][]Action{types.RoleTeacher: readWrite, types.RoleUser: readWrite}
)

// Policy decides role × resource × action, plus the system scope the
// caller's credential carries. Admins may do everything.
type Policy struct {
	rules map[Resource]rule
}

// DefaultPolicy returns the access rules of the API.
func DefaultPolicy() *Policy {
	return &Policy{rules: map[Resource]rule{
		ResourceEvaluations:   {scope: scopeEvaluation, roles: teacherRW},
		ResourceVideos:        {scope: scopeEvaluation, roles: teacherRW},
		ResourceGrades:        {scope: scopeGrading, roles: teacherRW},
		ResourceActivities:    {scope: scopeGrading, roles: teacherRW},
		ResourceAttendance:    {scope: scopeGrading, roles: teacherRW},
		ResourceSchoolYears:   {scope: scopeGrading, roles: viewers},
		ResourceStudentStatus: {scope: scopeGrading, roles: viewers},
		ResourceClasses:       {scope: scopeShared, roles: viewers},
		ResourceStudents:      {scope: scopeShared, roles: viewers},
		ResourceTeachers:      {scope: scopeShared, roles: viewers},
		ResourceSubjects:      {scope: scopeShared, roles: viewers},
		ResourceTokens:        {scope: scopeNone, roles: everyoneRW},
		ResourceTokenAdmin:    {scope: scopeNone},
		ResourceUsers:         {scope: scopeNone},
		ResourceAdminContacts: {scope: scopeNone},
	}}
}

// Allowed reports whether p may take action on resource.
func (pol *Policy) Allowed(p Principal, resource Resource, action Action) bool {
	if p.IsAdmin() {
		return true
	}
	r, ok := pol.rules[resource]
	if !ok {
		return false
	}
	if !systemAllows(p.System, r.scope) {
		return false
	}
	for _, allowed := range r.roles[strings.ToLower(p.Role)] {
		if allowed == action {
			return true
		}
	}
	return false
}

func systemAllows(system types.System, s scope) bool {
	switch s {
	case scopeEvaluation:
		return system.Includes(types.SystemEvaluation)
	case scopeGrading:
		return system.Includes(types.SystemGrading)
	case scopeShared:
		return system.Includes(types.SystemEvaluation) || system.Includes(types.SystemGrading)
	default:
		return true
	}
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

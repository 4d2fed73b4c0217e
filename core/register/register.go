package register

import (
	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
)

// Student is the public signup wizard for new students. The academics chain
// narrows college -> course -> academic year -> section; the section list is
// also filtered by course upstream.
func Student() *form.Definition {
	return form.MustNew("signup", "Student registration", "students/register",
		[]form.Step{
			{Name: "account", Title: "Your details", Fields: []string{"name", "email", "phone", "password", "password_confirm"}},
			{Name: "academics", Title: "Your academics", Fields: []string{"college", "course", "academic_year", "section", "regulation"}},
		},
		[]form.Field{
			{Name: "name", Label: "Full name", Kind: form.KindText, Required: true, Rules: "alphaspace,min=2,max=150"},
			{Name: "email", Label: "Email address", Kind: form.KindEmail, Required: true, Verify: true},
			{Name: "phone", Label: "Phone number", Kind: form.KindPhone, Required: true, Verify: true},
			{Name: "password", Label: "Password", Kind: form.KindPassword, Required: true, Check: checkPassword},
			{Name: "password_confirm", Label: "Confirm password", Kind: form.KindPassword, Required: true, Check: checkPasswordConfirm, Payload: "-"},
			{Name: "college", Label: "College", Kind: form.KindSelect, Required: true, Source: "colleges", Payload: "collegeId"},
			{Name: "course", Label: "Course", Kind: form.KindSelect, Required: true, Source: "courses", DependsOn: []string{"college"}, Payload: "courseId"},
			{Name: "academic_year", Label: "Year of study", Kind: form.KindSelect, Required: true, Source: "academic-years", DependsOn: []string{"course"}, Payload: "yearOfStudyId"},
			{Name: "section", Label: "Section", Kind: form.KindSelect, Required: true, Source: "sections", DependsOn: []string{"academic_year", "course"}, Payload: "sectionId"},
			{Name: "regulation", Label: "Regulation", Kind: form.KindSelect, Required: true, Source: "regulations", DependsOn: []string{"course"}, Payload: "regulationId"},
		},
	)
}

// Staff enrolls teaching and administrative staff. Admins only; the academia
// API rejects a second "hod" designation for a department.
func Staff() *form.Definition {
	return form.MustNew("staff-signup", "Staff registration", "staff/register",
		[]form.Step{
			{Name: "account", Title: "Staff details", Fields: []string{"name", "email", "phone"}},
			{Name: "placement", Title: "Placement", Fields: []string{"college", "department", "designation"}},
		},
		[]form.Field{
			{Name: "name", Label: "Full name", Kind: form.KindText, Required: true, Rules: "alphaspace,min=2,max=150"},
			{Name: "email", Label: "Email address", Kind: form.KindEmail, Required: true, Verify: true},
			{Name: "phone", Label: "Phone number", Kind: form.KindPhone, Required: true},
			{Name: "college", Label: "College", Kind: form.KindSelect, Required: true, Source: "colleges", Payload: "collegeId"},
			{Name: "department", Label: "Department", Kind: form.KindSelect, Required: true, Source: "departments", DependsOn: []string{"college"}, Payload: "departmentId"},
			{Name: "designation", Label: "Designation", Kind: form.KindSelect, Required: true, Source: "designations"},
		},
		core.RoleAdmin,
	)
}

// Package mapping holds the curriculum mapping wizards staff use to wire
// subjects to the right course, department and semester.
package mapping

import (
	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
)

// SubjectAssignment maps a subject onto a semester of a department's course.
func SubjectAssignment() *form.Definition {
	return form.MustNew("subject-assignment", "Subject assignment", "subjects/assign",
		[]form.Step{
			{Name: "curriculum", Title: "Curriculum", Fields: []string{"course_type", "course", "department", "semester"}},
			{Name: "assignment", Title: "Subject", Fields: []string{"subject"}},
		},
		[]form.Field{
			{Name: "course_type", Label: "Course type", Kind: form.KindSelect, Required: true, Source: "course-types", Payload: "courseTypeId"},
			{Name: "course", Label: "Course", Kind: form.KindSelect, Required: true, Source: "courses", DependsOn: []string{"course_type"}, Payload: "courseId"},
			{Name: "department", Label: "Department", Kind: form.KindSelect, Required: true, Source: "departments", DependsOn: []string{"course"}, Payload: "departmentId"},
			{Name: "semester", Label: "Semester", Kind: form.KindSelect, Required: true, Source: "semesters", DependsOn: []string{"department"}, Payload: "semesterId"},
			{Name: "subject", Label: "Subject", Kind: form.KindSelect, Required: true, Source: "subjects", DependsOn: []string{"semester"}, Payload: "subjectId"},
		},
		core.RoleAdmin, core.RoleTeacher,
	)
}

package form

import (
	"strings"
	"testing"
)

func validFields() []Field {
	return []Field{
		{Name: "name", Label: "Full name", Kind: KindText, Required: true, Rules: "min=2,max=150"},
		{Name: "email", Label: "Email", Kind: KindEmail, Required: true, Verify: true},
		{Name: "college", Label: "College", Kind: KindSelect, Required: true, Source: "colleges", Payload: "collegeId"},
		{Name: "course", Label: "Course", Kind: KindSelect, Required: true, Source: "courses", DependsOn: []string{"college"}, Payload: "courseId"},
	}
}

func validSteps() []Step {
	return []Step{
		{Name: "account", Title: "Your details", Fields: []string{"name", "email"}},
		{Name: "academics", Title: "Your academics", Fields: []string{"college", "course"}},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(steps []Step, fields []Field) ([]Step, []Field)
		wantErr string
	}{
		{name: "valid"},
		{
			name: "field without a name",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[0].Name = ""
				return steps, fields
			},
			wantErr: "field without a name",
		},
		{
			name: "duplicate field",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[1].Name = "name"
				return steps, fields
			},
			wantErr: `duplicate field "name"`,
		},
		{
			name: "unknown step field",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				steps[0].Fields = append(steps[0].Fields, "nickname")
				return steps, fields
			},
			wantErr: `unknown field "nickname"`,
		},
		{
			name: "field on two steps",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				steps[1].Fields = append(steps[1].Fields, "name")
				return steps, fields
			},
			wantErr: `field "name" appears in steps`,
		},
		{
			name: "field on no step",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields = append(fields, Field{Name: "lost", Kind: KindText})
				return steps, fields
			},
			wantErr: `field "lost" is not placed on any step`,
		},
		{
			name: "select without source",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[2].Source = ""
				return steps, fields
			},
			wantErr: "select fields need an options source",
		},
		{
			name: "verify on text",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[0].Verify = true
				return steps, fields
			},
			wantErr: "only email and phone fields can be verified",
		},
		{
			name: "depends on unknown field",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[3].DependsOn = []string{"university"}
				return steps, fields
			},
			wantErr: `depends on unknown field "university"`,
		},
		{
			name: "depends on non-select",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[3].DependsOn = []string{"name"}
				return steps, fields
			},
			wantErr: "is not a select field",
		},
		{
			name: "depends on itself",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[3].DependsOn = []string{"course"}
				return steps, fields
			},
			wantErr: `field "course" depends on itself`,
		},
		{
			name: "depends on later step",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields = append(fields, Field{Name: "campus", Kind: KindSelect, Source: "campuses", DependsOn: []string{"course"}})
				steps[0].Fields = append(steps[0].Fields, "campus")
				return steps, fields
			},
			wantErr: "sits on a later step",
		},
		{
			name: "dependency cycle",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[2].DependsOn = []string{"course"}
				return steps, fields
			},
			wantErr: "dependency cycle",
		},
		{
			name: "duplicate payload name",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				fields[3].Payload = "collegeId"
				return steps, fields
			},
			wantErr: `share payload name "collegeId"`,
		},
		{
			name: "no steps",
			mutate: func(steps []Step, fields []Field) ([]Step, []Field) {
				return nil, fields
			},
			wantErr: "at least one step is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, fields := validSteps(), validFields()
			if tt.mutate != nil {
				steps, fields = tt.mutate(steps, fields)
			}
			_, err := New("signup", "Sign up", "students/register", steps, fields)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("New() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("New() error = nil, wantErr %q", tt.wantErr)
			} else if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, wantErr %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefinition_AllowedFor(t *testing.T) {
	public := MustNew("open", "Open", "open/submit", validSteps(), validFields())
	gated := MustNew("gated", "Gated", "gated/submit", validSteps(), validFields(), "admin:", "teacher:")

	tests := []struct {
		name  string
		def   *Definition
		roles []string
		want  bool
	}{
		{name: "public form, no roles", def: public, want: true},
		{name: "public form, any roles", def: public, roles: []string{"student:"}, want: true},
		{name: "gated form, no roles", def: gated, want: false},
		{name: "gated form, wrong role", def: gated, roles: []string{"student:"}, want: false},
		{name: "gated form, allowed role", def: gated, roles: []string{"teacher:"}, want: true},
		{name: "gated form, one of many", def: gated, roles: []string{"student:", "admin:"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.AllowedFor(tt.roles); got != tt.want {
				t.Errorf("AllowedFor(%v) = %v, want %v", tt.roles, got, tt.want)
			}
		})
	}
}

func TestDefinition_Children(t *testing.T) {
	fields := append(validFields(),
		Field{Name: "academic_year", Kind: KindSelect, Source: "academic-years", DependsOn: []string{"course"}, Payload: "yearOfStudyId"},
		Field{Name: "section", Kind: KindSelect, Source: "sections", DependsOn: []string{"academic_year", "course"}, Payload: "sectionId"},
	)
	steps := validSteps()
	steps[1].Fields = append(steps[1].Fields, "academic_year", "section")
	def := MustNew("signup", "Sign up", "students/register", steps, fields)

	wantCourse := []string{"academic_year", "section"}
	got := def.Children("course")
	if len(got) != len(wantCourse) {
		t.Fatalf("Children(course) = %v, want %v", got, wantCourse)
	}
	for i := range wantCourse {
		if got[i] != wantCourse[i] {
			t.Errorf("Children(course)[%d] = %q, want %q", i, got[i], wantCourse[i])
		}
	}
	if got := def.Children("section"); len(got) != 0 {
		t.Errorf("Children(section) = %v, want none", got)
	}
}

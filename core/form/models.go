package form

import (
	"sort"

	"github.com/pkg/errors"
)

type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindPhone    FieldKind = "phone"
	KindPassword FieldKind = "password"
	KindSelect   FieldKind = "select"
)

// Option is a single selectable choice served by the academia API.
// ParentID ties it to a selected option of the field's primary parent.
type Option struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	ParentID string `json:"parentId,omitempty"`
}

// CheckFunc runs a domain check on a candidate value.
// values holds the session's current values keyed by canonical field name.
type CheckFunc func(values map[string]string, value string) error

type (
	Field struct {
		Name     string
		Label    string
		Kind     FieldKind
		Required bool

		// Verify marks an email/phone field whose ownership must be confirmed
		// with a one-time code before submission.
		Verify bool

		// Rules holds extra validator rules for text fields, eg "min=2,max=150".
		Rules string

		// Check runs after Rules; it sees the session's other values.
		Check CheckFunc

		// Source names the academia entity serving this field's options.
		// Select fields only.
		Source string

		// DependsOn lists parent fields. The first entry is the primary parent:
		// its selected option ID must match Option.ParentID. All entries are
		// sent upstream as fetch filters, keyed by their Payload names.
		DependsOn []string

		// Payload is the field's name in the submission payload and in upstream
		// query params. Defaults to Name; "-" omits the field from the payload.
		Payload string
	}

	Step struct {
		Name   string
		Title  string
		Fields []string
	}

	// Definition is an immutable description of a multi-step form: its steps,
	// fields, dependency edges and submission route.
	Definition struct {
		name         string
		title        string
		submitRoute  string
		allowedRoles []string
		steps        []Step
		fields       map[string]Field
		order        []string
		children     map[string][]string
	}
)

// New builds and checks a Definition. Definitions are registered once at
// startup; an invalid one is a programming error.
func New(name, title, submitRoute string, steps []Step, fields []Field, roles ...string) (*Definition, error) {
	def := &Definition{
		name:         name,
		title:        title,
		submitRoute:  submitRoute,
		allowedRoles: roles,
		steps:        steps,
		fields:       make(map[string]Field, len(fields)),
		order:        make([]string, 0, len(fields)),
		children:     make(map[string][]string),
	}

	if name == "" {
		return nil, errors.New("form name is required")
	}
	if submitRoute == "" {
		return nil, errors.Errorf("form %q: submit route is required", name)
	}
	if len(steps) == 0 {
		return nil, errors.Errorf("form %q: at least one step is required", name)
	}

	for _, f := range fields {
		if f.Name == "" {
			return nil, errors.Errorf("form %q: field without a name", name)
		}
		if _, ok := def.fields[f.Name]; ok {
			return nil, errors.Errorf("form %q: duplicate field %q", name, f.Name)
		}
		if err := checkField(f); err != nil {
			return nil, errors.Wrapf(err, "form %q", name)
		}
		def.fields[f.Name] = f
		def.order = append(def.order, f.Name)
	}

	if err := def.checkSteps(); err != nil {
		return nil, errors.Wrapf(err, "form %q", name)
	}
	if err := def.checkDependencies(); err != nil {
		return nil, errors.Wrapf(err, "form %q", name)
	}
	if err := def.checkPayloadKeys(); err != nil {
		return nil, errors.Wrapf(err, "form %q", name)
	}
	return def, nil
}

// MustNew is New, panicking on error. For statically declared forms.
func MustNew(name, title, submitRoute string, steps []Step, fields []Field, roles ...string) *Definition {
	def, err := New(name, title, submitRoute, steps, fields, roles...)
	if err != nil {
		panic(err)
	}
	return def
}

func checkField(f Field) error {
	switch f.Kind {
	case KindText, KindPassword:
		if f.Verify {
			return errors.Errorf("field %q: only email and phone fields can be verified", f.Name)
		}
	case KindEmail, KindPhone:
	case KindSelect:
		if f.Verify {
			return errors.Errorf("field %q: only email and phone fields can be verified", f.Name)
		}
		if f.Source == "" {
			return errors.Errorf("field %q: select fields need an options source", f.Name)
		}
	default:
		return errors.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
	}
	if f.Kind != KindSelect {
		if f.Source != "" {
			return errors.Errorf("field %q: only select fields have an options source", f.Name)
		}
		if len(f.DependsOn) > 0 {
			return errors.Errorf("field %q: only select fields can depend on others", f.Name)
		}
	}
	return nil
}

func (def *Definition) checkSteps() error {
	seenSteps := make(map[string]bool, len(def.steps))
	seenFields := make(map[string]string, len(def.fields))
	for _, step := range def.steps {
		if step.Name == "" {
			return errors.New("step without a name")
		}
		if seenSteps[step.Name] {
			return errors.Errorf("duplicate step %q", step.Name)
		}
		seenSteps[step.Name] = true
		if len(step.Fields) == 0 {
			return errors.Errorf("step %q has no fields", step.Name)
		}
		for _, name := range step.Fields {
			if _, ok := def.fields[name]; !ok {
				return errors.Errorf("step %q: unknown field %q", step.Name, name)
			}
			if prev, ok := seenFields[name]; ok {
				return errors.Errorf("field %q appears in steps %q and %q", name, prev, step.Name)
			}
			seenFields[name] = step.Name
		}
	}
	for _, name := range def.order {
		if _, ok := seenFields[name]; !ok {
			return errors.Errorf("field %q is not placed on any step", name)
		}
	}
	return nil
}

func (def *Definition) checkDependencies() error {
	for _, name := range def.order {
		f := def.fields[name]
		seen := make(map[string]bool, len(f.DependsOn))
		for _, parent := range f.DependsOn {
			if parent == name {
				return errors.Errorf("field %q depends on itself", name)
			}
			if seen[parent] {
				return errors.Errorf("field %q depends on %q twice", name, parent)
			}
			seen[parent] = true
			pf, ok := def.fields[parent]
			if !ok {
				return errors.Errorf("field %q depends on unknown field %q", name, parent)
			}
			if pf.Kind != KindSelect {
				return errors.Errorf("field %q depends on %q which is not a select field", name, parent)
			}
			if payloadKey(pf) == "" {
				return errors.Errorf("field %q depends on %q which has no payload name", name, parent)
			}
			if def.stepOf(parent) > def.stepOf(name) {
				return errors.Errorf("field %q depends on %q which sits on a later step", name, parent)
			}
			def.children[parent] = append(def.children[parent], name)
		}
	}

	// a dependency cycle would make the cascade loop forever
	indegree := make(map[string]int, len(def.order))
	for _, name := range def.order {
		indegree[name] = len(def.fields[name].DependsOn)
	}
	queue := make([]string, 0, len(def.order))
	for _, name := range def.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range def.children[name] {
			if indegree[child]--; indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if visited != len(def.order) {
		var cyclic []string
		for name, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return errors.Errorf("dependency cycle involving %v", cyclic)
	}
	return nil
}

func (def *Definition) checkPayloadKeys() error {
	seen := make(map[string]string, len(def.order))
	for _, name := range def.order {
		key := payloadKey(def.fields[name])
		if key == "" {
			continue
		}
		if prev, ok := seen[key]; ok {
			return errors.Errorf("fields %q and %q share payload name %q", prev, name, key)
		}
		seen[key] = name
	}
	return nil
}

func payloadKey(f Field) string {
	if f.Payload == "-" {
		return ""
	}
	if f.Payload == "" {
		return f.Name
	}
	return f.Payload
}

func (def *Definition) Name() string           { return def.name }
func (def *Definition) Title() string          { return def.title }
func (def *Definition) SubmitRoute() string    { return def.submitRoute }
func (def *Definition) AllowedRoles() []string { return def.allowedRoles }
func (def *Definition) Steps() []Step          { return def.steps }

// Field looks a field up by canonical name.
func (def *Definition) Field(name string) (Field, bool) {
	f, ok := def.fields[name]
	return f, ok
}

// Fields returns all fields in declaration order.
func (def *Definition) Fields() []Field {
	fields := make([]Field, 0, len(def.order))
	for _, name := range def.order {
		fields = append(fields, def.fields[name])
	}
	return fields
}

// Children returns the direct dependency-children of a field.
func (def *Definition) Children(name string) []string {
	return def.children[name]
}

func (def *Definition) stepOf(name string) int {
	for i, step := range def.steps {
		for _, fname := range step.Fields {
			if fname == name {
				return i
			}
		}
	}
	return -1
}

// AllowedFor reports whether a caller holding the given roles may open the
// form. Forms without role restrictions are public.
func (def *Definition) AllowedFor(roles []string) bool {
	if len(def.allowedRoles) == 0 {
		return true
	}
	sorted := append([]string(nil), roles...)
	sort.Strings(sorted)
	for _, allowed := range def.allowedRoles {
		if i := sort.SearchStrings(sorted, allowed); i < len(sorted) {
			if match := sorted[i]; allowed == match {
				return true
			}
		}
	}
	return false
}

type (
	// Info is the renderable description of a registered form.
	Info struct {
		Name  string     `json:"name"`
		Title string     `json:"title"`
		Roles []string   `json:"roles,omitempty"`
		Steps []StepInfo `json:"steps"`
	}

	StepInfo struct {
		Name   string      `json:"name"`
		Title  string      `json:"title"`
		Fields []FieldInfo `json:"fields"`
	}

	FieldInfo struct {
		Name      string    `json:"name"`
		Label     string    `json:"label"`
		Kind      FieldKind `json:"kind"`
		Required  bool      `json:"required,omitempty"`
		Verify    bool      `json:"verify,omitempty"`
		DependsOn []string  `json:"dependsOn,omitempty"`
	}
)

func (def *Definition) Info() Info {
	info := Info{
		Name:  def.name,
		Title: def.title,
		Roles: def.allowedRoles,
		Steps: make([]StepInfo, 0, len(def.steps)),
	}
	for _, step := range def.steps {
		si := StepInfo{Name: step.Name, Title: step.Title, Fields: make([]FieldInfo, 0, len(step.Fields))}
		for _, name := range step.Fields {
			f := def.fields[name]
			si.Fields = append(si.Fields, FieldInfo{
				Name:      f.Name,
				Label:     f.Label,
				Kind:      f.Kind,
				Required:  f.Required,
				Verify:    f.Verify,
				DependsOn: f.DependsOn,
			})
		}
		info.Steps = append(info.Steps, si)
	}
	return info
}

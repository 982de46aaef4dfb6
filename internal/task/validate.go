package task

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// FieldError is a single schema violation on one candidate.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Message }

// Rejection is a candidate that failed validation. Index is the element's
// position in the model's JSON array.
type Rejection struct {
	Index     int          `json:"index"`
	Candidate Candidate    `json:"candidate"`
	Errors    []FieldError `json:"errors"`
}

// Report partitions a batch of candidates.
type Report struct {
	Valid   []Task
	Invalid []Rejection
}

// record is the typed intermediate form the struct rules run against.
// Pointers distinguish a missing number from an explicit zero.
type record struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title" validate:"required,max=50"`
	Description           string   `json:"description" validate:"required,min=10,max=500"`
	Domain                string   `json:"domain" validate:"required"`
	EstimatedStatus       string   `json:"estimatedStatus" validate:"required,oneof=Progress Planned NotStarted Completed"`
	Frequency             string   `json:"frequency" validate:"required,oneof=Daily Weekly Monthly Quarterly Yearly AdHoc"`
	AutomationPotential   string   `json:"automationPotential" validate:"required,oneof=High Medium Low"`
	Source                string   `json:"source" validate:"required,oneof=Uploaded Manual"`
	TimeSpentHours        *float64 `json:"timeSpentHours" validate:"required,gte=0.1,lte=24"`
	AutomationMethod      string   `json:"automationMethod"`
	EstimatedSavingsHours *float64 `json:"estimatedSavingsHours" validate:"required,gte=0,lte=1000"`
	Complexity            string   `json:"complexity" validate:"required,oneof=Simple Moderate Complex"`
	Priority              string   `json:"priority" validate:"required,oneof=High Medium Low"`
	Tags                  []string `json:"tags" validate:"max=10"`
}

// Validator checks candidates against the Task schema. It is safe for
// concurrent use once constructed.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewValidator builds a Validator with English field messages.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	registerMessages(v, trans)

	return &Validator{validate: v, trans: trans}
}

// Validate checks every candidate independently. A failing candidate never
// stops the rest of the batch.
func (v *Validator) Validate(candidates []Candidate) Report {
	var rep Report
	for i, c := range candidates {
		t, errs := v.ValidateOne(c)
		if len(errs) > 0 {
			rep.Invalid = append(rep.Invalid, Rejection{Index: i, Candidate: c, Errors: errs})
			continue
		}
		rep.Valid = append(rep.Valid, t)
	}
	return rep
}

// ValidateOne decodes and checks a single candidate.
func (v *Validator) ValidateOne(c Candidate) (Task, []FieldError) {
	if c.Fields == nil {
		return Task{}, []FieldError{{Field: "$", Message: "record must be a JSON object"}}
	}

	rec, errs := decodeRecord(c.Fields)
	errs = append(errs, v.check(rec, erroredFields(errs))...)
	if len(errs) > 0 {
		return Task{}, errs
	}
	return rec.task(), nil
}

// Check runs the struct rules against an already-typed Task, e.g. one edited
// through the API.
func (v *Validator) Check(t Task) []FieldError {
	ts, sv := t.TimeSpentHours, t.EstimatedSavingsHours
	rec := record{
		ID:                    t.ID,
		Title:                 t.Title,
		Description:           t.Description,
		Domain:                t.Domain,
		EstimatedStatus:       string(t.EstimatedStatus),
		Frequency:             string(t.Frequency),
		AutomationPotential:   string(t.AutomationPotential),
		Source:                string(t.Source),
		TimeSpentHours:        &ts,
		AutomationMethod:      t.AutomationMethod,
		EstimatedSavingsHours: &sv,
		Complexity:            string(t.Complexity),
		Priority:              string(t.Priority),
		Tags:                  t.Tags,
	}
	return v.check(rec, nil)
}

func (v *Validator) check(rec record, skip map[string]bool) []FieldError {
	err := v.validate.Struct(rec)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "$", Message: err.Error()}}
	}
	var out []FieldError
	for _, fe := range verrs {
		if skip[fe.Field()] {
			continue
		}
		out = append(out, FieldError{Field: fe.Field(), Message: fe.Translate(v.trans)})
	}
	return out
}

func erroredFields(errs []FieldError) map[string]bool {
	if len(errs) == 0 {
		return nil
	}
	m := make(map[string]bool, len(errs))
	for _, e := range errs {
		m[e.Field] = true
	}
	return m
}

// decodeRecord performs the type checks the struct rules cannot express.
func decodeRecord(fields map[string]any) (record, []FieldError) {
	var rec record
	var errs []FieldError

	str := func(key string, dst *string) {
		raw, ok := fields[key]
		if !ok || raw == nil {
			return
		}
		s, ok := raw.(string)
		if !ok {
			errs = append(errs, FieldError{Field: key, Message: key + " must be a string"})
			return
		}
		*dst = strings.TrimSpace(s)
	}
	num := func(key, alias string, dst **float64) {
		raw, ok := fields[key]
		if !ok || raw == nil {
			raw, ok = fields[alias]
		}
		if !ok || raw == nil {
			return
		}
		f, ok := raw.(float64)
		if !ok {
			errs = append(errs, FieldError{Field: key, Message: key + " must be a number"})
			return
		}
		*dst = &f
	}
	enum := func(key string, dst *string, parse func(string) (string, bool)) {
		str(key, dst)
		if *dst == "" {
			return
		}
		if canon, ok := parse(*dst); ok {
			*dst = canon
		}
	}

	switch id := fields["id"].(type) {
	case string:
		rec.ID = strings.TrimSpace(id)
	case float64:
		rec.ID = strconv.FormatFloat(id, 'f', -1, 64)
	}

	str("title", &rec.Title)
	str("description", &rec.Description)
	str("domain", &rec.Domain)
	str("automationMethod", &rec.AutomationMethod)
	enum("estimatedStatus", &rec.EstimatedStatus, stringParser(ParseStatus))
	enum("frequency", &rec.Frequency, stringParser(ParseFrequency))
	enum("automationPotential", &rec.AutomationPotential, stringParser(ParseLevel))
	enum("source", &rec.Source, stringParser(ParseSource))
	enum("complexity", &rec.Complexity, stringParser(ParseComplexity))
	enum("priority", &rec.Priority, stringParser(ParseLevel))
	num("timeSpentHours", "timeSpent", &rec.TimeSpentHours)
	num("estimatedSavingsHours", "estimatedSavings", &rec.EstimatedSavingsHours)

	rec.Tags = []string{}
	if raw, ok := fields["tags"]; ok && raw != nil {
		items, ok := raw.([]any)
		if !ok {
			errs = append(errs, FieldError{Field: "tags", Message: "tags must be an array of strings"})
		} else {
			for _, it := range items {
				s, ok := it.(string)
				if !ok {
					errs = append(errs, FieldError{Field: "tags", Message: "tags must be an array of strings"})
					break
				}
				rec.Tags = append(rec.Tags, strings.TrimSpace(s))
			}
		}
	}

	return rec, errs
}

func stringParser[T ~string](parse func(string) (T, bool)) func(string) (string, bool) {
	return func(s string) (string, bool) {
		v, ok := parse(s)
		return string(v), ok
	}
}

func (r record) task() Task {
	t := Task{
		ID:                  r.ID,
		Title:               r.Title,
		Description:         r.Description,
		Domain:              r.Domain,
		EstimatedStatus:     Status(r.EstimatedStatus),
		Frequency:           Frequency(r.Frequency),
		AutomationPotential: Level(r.AutomationPotential),
		Source:              Source(r.Source),
		AutomationMethod:    r.AutomationMethod,
		Complexity:          Complexity(r.Complexity),
		Priority:            Level(r.Priority),
		Tags:                r.Tags,
	}
	if r.TimeSpentHours != nil {
		t.TimeSpentHours = *r.TimeSpentHours
	}
	if r.EstimatedSavingsHours != nil {
		t.EstimatedSavingsHours = *r.EstimatedSavingsHours
	}
	return t
}

// registerMessages installs the English text for every rule used by record.
func registerMessages(v *validator.Validate, trans ut.Translator) {
	add := func(key, text string) {
		_ = trans.Add(key, text, true)
	}
	add("required", "{0} is required")
	add("max-chars", "{0} must be at most {1} characters")
	add("min-chars", "{0} must be at least {1} characters")
	add("max-items", "{0} must have at most {1} items")
	add("gte", "{0} must be ≥ {1}")
	add("lte", "{0} must be ≤ {1}")
	add("oneof", "{0} must be one of {1}")

	render := func(key string) validator.TranslationFunc {
		return func(t ut.Translator, fe validator.FieldError) string {
			k := key
			switch key {
			case "max", "min":
				if fe.Kind() == reflect.Slice {
					k = key + "-items"
				} else {
					k = key + "-chars"
				}
			}
			param := fe.Param()
			if key == "oneof" {
				param = strings.Join(strings.Fields(param), ", ")
			}
			msg, err := t.T(k, fe.Field(), param)
			if err != nil {
				return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
			}
			return msg
		}
	}
	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{"required", "max", "min", "gte", "lte", "oneof"} {
		_ = v.RegisterTranslation(tag, trans, noop, render(tag))
	}
}

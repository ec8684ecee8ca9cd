package prompt

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"argus/pkg/errors"
)

// Status is the lifecycle state of a prompt template version.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusTesting    Status = "testing"
	StatusDeprecated Status = "deprecated"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// Template is one version of a named prompt template. Placeholders use
// {name} syntax and are extracted at creation time.
type Template struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Template           string             `json:"template"`
	Version            int                `json:"version"`
	Status             Status             `json:"status"`
	Description        string             `json:"description,omitempty"`
	Variables          []string           `json:"variables"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
}

// NewTemplate creates a draft template version. The id embeds the
// name, creation time and a content digest so re-creating the same
// text at a different time yields a distinct version id.
func NewTemplate(name, text, description string, version int) *Template {
	now := time.Now().UTC()
	digest := fmt.Sprintf("%x", md5.Sum([]byte(text)))

	return &Template{
		ID:          fmt.Sprintf("%s_%d_%s", name, now.Unix(), digest[:8]),
		Name:        name,
		Template:    text,
		Version:     version,
		Status:      StatusDraft,
		Description: description,
		Variables:   ExtractVariables(text),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Touch bumps the updated timestamp after a mutation.
func (t *Template) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// ExtractVariables returns the distinct placeholder names in text, in
// first-appearance order.
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
	}
	return vars
}

// Render substitutes placeholders with values. Every placeholder in
// the template must be supplied; a missing variable is an input error
// naming the variable.
func (t *Template) Render(values map[string]string) (string, error) {
	var missing []string
	for _, name := range t.Variables {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", errors.Wrapf(errors.ErrInvalidInput, "missing template variables: %s", strings.Join(missing, ", "))
	}

	out := placeholderPattern.ReplaceAllStringFunc(t.Template, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		return values[name]
	})
	return out, nil
}

// Validate checks invariants on a template about to be stored.
func (t *Template) Validate() error {
	if t.Name == "" {
		return errors.NewValidationError("name", "must not be empty", t.Name)
	}
	if t.Template == "" {
		return errors.NewValidationError("template", "must not be empty", t.Template)
	}
	return nil
}

// DecodeTemplate re-hydrates a stored template with required-field
// validation.
func DecodeTemplate(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "malformed template: %v", err)
	}
	if t.ID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored template missing id")
	}
	if t.Name == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "stored template %s missing name", t.ID)
	}
	return &t, nil
}

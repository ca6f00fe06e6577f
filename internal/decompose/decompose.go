// Package decompose turns model replies into intention analyses, task
// suggestions and task updates.
//
// Every reply goes through the same pipeline: the JSON object is cut out of
// the surrounding text, each required field is type-checked with gjson, the
// object is decoded into its Go shape, and the decoded value is validated.
// Any failure yields ErrParse or ErrSchema and the caller falls back to the
// deterministic values in fallback.go.
package decompose

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

var (
	// ErrParse is returned when a reply contains no parseable JSON object.
	ErrParse = errors.New("malformed model reply")
	// ErrSchema is returned when a reply is valid JSON but misses or mistypes
	// a required field.
	ErrSchema = errors.New("model reply does not match schema")
)

const (
	// MaxTasks is the most tasks kept from one analysis or suggestion reply.
	MaxTasks = 5
	// MaxProgressEstimate is the upper bound of Analysis.ProgressEstimate.
	MaxProgressEstimate = 100
)

// SuggestedTask is a single task proposed by the model.
type SuggestedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
}

// Analysis is the model's interpretation of an intention.
type Analysis struct {
	IntentionAnalysis string          `json:"intentionAnalysis"`
	SuggestedTasks    []SuggestedTask `json:"suggestedTasks"`
	ProgressEstimate  int             `json:"progressEstimate"`
}

// Suggestions holds additional tasks proposed for an existing intention.
type Suggestions struct {
	NewTasks []SuggestedTask `json:"newTasks"`
}

// TaskUpdate is the model's revision of a task after new context.
type TaskUpdate struct {
	UpdatedDescription string            `json:"updatedDescription"`
	Status             models.TaskStatus `json:"status"`
}

// TaskBrief is the part of a task the model sees.
type TaskBrief struct {
	Title       string
	Description string
	Status      models.TaskStatus
}

// BriefOf extracts a TaskBrief from a task.
func BriefOf(t *models.Task) TaskBrief {
	return TaskBrief{Title: t.Title, Description: t.Description, Status: t.Status}
}

// ExtractJSON returns the text between the first '{' and the last '}'.
// Models often wrap JSON in prose or code fences.
func ExtractJSON(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found in %d chars: %q", ErrParse, len(reply), preview(reply))
	}
	obj := reply[start : end+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: invalid JSON: %q", ErrParse, preview(obj))
	}
	return obj, nil
}

// ParseAnalysis parses an intention-analysis reply. More than MaxTasks
// suggested tasks are truncated; zero tasks, empty fields or an estimate
// outside 0..100 are schema failures.
func ParseAnalysis(reply string) (*Analysis, error) {
	obj, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	if err := requireString(obj, "intentionAnalysis"); err != nil {
		return nil, err
	}
	tasks, err := decodeTasks(gjson.Get(obj, "suggestedTasks"), "suggestedTasks")
	if err != nil {
		return nil, err
	}
	estimate := gjson.Get(obj, "progressEstimate")
	if estimate.Type != gjson.Number {
		return nil, fmt.Errorf("%w: progressEstimate must be a number", ErrSchema)
	}

	a := &Analysis{
		IntentionAnalysis: strings.TrimSpace(gjson.Get(obj, "intentionAnalysis").String()),
		SuggestedTasks:    tasks,
		ProgressEstimate:  int(math.Round(estimate.Float())),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks an Analysis against its invariants.
func (a *Analysis) Validate() error {
	if a.IntentionAnalysis == "" {
		return fmt.Errorf("%w: intentionAnalysis is empty", ErrSchema)
	}
	if len(a.SuggestedTasks) == 0 {
		return fmt.Errorf("%w: suggestedTasks is empty", ErrSchema)
	}
	if len(a.SuggestedTasks) > MaxTasks {
		return fmt.Errorf("%w: %d suggested tasks, at most %d allowed", ErrSchema, len(a.SuggestedTasks), MaxTasks)
	}
	for i, t := range a.SuggestedTasks {
		if err := t.validate(fmt.Sprintf("suggestedTasks[%d]", i)); err != nil {
			return err
		}
	}
	if a.ProgressEstimate < 0 || a.ProgressEstimate > MaxProgressEstimate {
		return fmt.Errorf("%w: progressEstimate %d outside 0..%d", ErrSchema, a.ProgressEstimate, MaxProgressEstimate)
	}
	return nil
}

// ParseSuggestions parses a task-suggestion reply. An empty newTasks array
// is valid.
func ParseSuggestions(reply string) (*Suggestions, error) {
	obj, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	tasks, err := decodeTasks(gjson.Get(obj, "newTasks"), "newTasks")
	if err != nil {
		return nil, err
	}
	s := Suggestions{NewTasks: tasks}
	for i, t := range s.NewTasks {
		if err := t.validate(fmt.Sprintf("newTasks[%d]", i)); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// ParseTaskUpdate parses a task-update reply.
func ParseTaskUpdate(reply string) (*TaskUpdate, error) {
	obj, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	if err := requireString(obj, "updatedDescription"); err != nil {
		return nil, err
	}
	if err := requireString(obj, "status"); err != nil {
		return nil, err
	}

	var u TaskUpdate
	if err := json.Unmarshal([]byte(obj), &u); err != nil {
		return nil, fmt.Errorf("%w: decode task update: %v", ErrParse, err)
	}
	u.UpdatedDescription = strings.TrimSpace(u.UpdatedDescription)
	u.Status = models.TaskStatus(strings.ToLower(strings.TrimSpace(string(u.Status))))

	if u.UpdatedDescription == "" {
		return nil, fmt.Errorf("%w: updatedDescription is empty", ErrSchema)
	}
	if !u.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrSchema, u.Status)
	}
	return &u, nil
}

// requireString checks that path exists and holds a JSON string.
func requireString(obj, path string) error {
	r := gjson.Get(obj, path)
	if !r.Exists() {
		return fmt.Errorf("%w: missing %s", ErrSchema, path)
	}
	if r.Type != gjson.String {
		return fmt.Errorf("%w: %s must be a string", ErrSchema, path)
	}
	return nil
}

// decodeTasks type-checks and decodes the first MaxTasks elements of a task
// array. Elements past the cap are discarded without inspection.
func decodeTasks(arr gjson.Result, name string) ([]SuggestedTask, error) {
	if !arr.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array", ErrSchema, name)
	}

	tasks := []SuggestedTask{}
	var err error
	arr.ForEach(func(_, v gjson.Result) bool {
		i := len(tasks)
		if i >= MaxTasks {
			return false
		}
		if !v.IsObject() {
			err = fmt.Errorf("%w: %s[%d] must be an object", ErrSchema, name, i)
			return false
		}
		for _, field := range []string{"title", "description", "reasoning"} {
			if v.Get(field).Type != gjson.String {
				err = fmt.Errorf("%w: %s[%d].%s must be a string", ErrSchema, name, i, field)
				return false
			}
		}
		var t SuggestedTask
		if uerr := json.Unmarshal([]byte(v.Raw), &t); uerr != nil {
			err = fmt.Errorf("%w: decode %s[%d]: %v", ErrParse, name, i, uerr)
			return false
		}
		tasks = append(tasks, SuggestedTask{
			Title:       strings.TrimSpace(t.Title),
			Description: strings.TrimSpace(t.Description),
			Reasoning:   strings.TrimSpace(t.Reasoning),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (t SuggestedTask) validate(prefix string) error {
	switch {
	case t.Title == "":
		return fmt.Errorf("%w: %s.title is empty", ErrSchema, prefix)
	case t.Description == "":
		return fmt.Errorf("%w: %s.description is empty", ErrSchema, prefix)
	case t.Reasoning == "":
		return fmt.Errorf("%w: %s.reasoning is empty", ErrSchema, prefix)
	}
	return nil
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "... (truncated)"
	}
	return s
}

package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Kind classifies a workflow step.
type Kind string

const (
	KindTrigger      Kind = "Trigger"
	KindProcess      Kind = "Process"
	KindAction       Kind = "Action"
	KindLogic        Kind = "Logic"
	KindTransform    Kind = "Transform"
	KindErrorHandler Kind = "ErrorHandler"
)

// ParseKind maps loose spellings ("error_handler", "trigger", "ACTION") onto
// a Kind. The second result is false when nothing matches.
func ParseKind(s string) (Kind, bool) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "trigger":
		return KindTrigger, true
	case "process", "processing":
		return KindProcess, true
	case "action", "output":
		return KindAction, true
	case "logic", "condition":
		return KindLogic, true
	case "transform", "transformation":
		return KindTransform, true
	case "errorhandler", "error", "errorhandling":
		return KindErrorHandler, true
	}
	return "", false
}

// UnmarshalJSON accepts any spelling ParseKind understands. Unknown kinds
// decode as-is so validation can report them.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, ok := ParseKind(s); ok {
		*k = parsed
		return nil
	}
	*k = Kind(s)
	return nil
}

// Step is one logical unit of work in an automation plan, before it is
// lowered into a graph node.
type Step struct {
	Index             int    `json:"index" validate:"gte=1"`
	Kind              Kind   `json:"kind" validate:"required,oneof=Trigger Process Action Logic Transform ErrorHandler"`
	Description       string `json:"description" validate:"max=2000"`
	ServiceLabel      string `json:"serviceLabel,omitempty" validate:"max=200"`
	NodeTypeID        string `json:"nodeTypeId" validate:"required"`
	Rationale         string `json:"rationale,omitempty"`
	Parallelizable    bool   `json:"parallelizable"`
	ErrorHandlingNote string `json:"errorHandlingNote,omitempty"`

	// UnknownType is set during normalization when NodeTypeID does not
	// resolve in the catalog.
	UnknownType bool `json:"unknownType,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func stepValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateSteps checks each step's fields. It does not check ordering; see
// Normalize for that.
func ValidateSteps(steps []Step) error {
	v := stepValidator()
	var errs []error
	for i := range steps {
		if err := v.Struct(steps[i]); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					errs = append(errs, fmt.Errorf("step %d: field %q failed %q", i+1, fe.Field(), fe.Tag()))
				}
				continue
			}
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Reindex assigns contiguous 1-based indices in slice order.
func Reindex(steps []Step) {
	for i := range steps {
		steps[i].Index = i + 1
	}
}

// CloneSteps returns a copy of steps.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

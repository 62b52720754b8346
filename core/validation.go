package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// Issue is one structural problem found in a simulation definition. Path
// uses the JSON field names, e.g. "flights[1].from".
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationResult is the outcome of ValidateConfig.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// ConfigError carries the validation result of a rejected definition.
type ConfigError struct {
	Result ValidationResult
}

func (e *ConfigError) Error() string {
	msgs := make([]string, 0, len(e.Result.Issues))
	for _, issue := range e.Result.Issues {
		msgs = append(msgs, issue.String())
	}
	return fmt.Sprintf("%v: %s", ErrConfigInvalid, strings.Join(msgs, "; "))
}

func (e *ConfigError) Unwrap() error { return ErrConfigInvalid }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		if err := v.RegisterValidation("nonblank", nonBlank); err != nil {
			panic(err)
		}
		v.RegisterStructValidation(waypointRule, model.Waypoint{})
		v.RegisterStructValidation(uniqueFlightIDs, model.SimulationConfig{})
		validate = v
	})
	return validate
}

// ValidateConfig checks the structure of a simulation definition without
// touching any registry. It never panics and never modifies cfg.
func ValidateConfig(cfg *model.SimulationConfig) ValidationResult {
	if cfg == nil {
		return ValidationResult{Issues: []Issue{{Message: "simulation definition is required"}}}
	}

	err := configValidator().Struct(cfg)
	if err == nil {
		return ValidationResult{Valid: true}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationResult{Issues: []Issue{{Message: err.Error()}}}
	}
	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, Issue{Path: issuePath(fe.Namespace()), Message: issueMessage(fe)})
	}
	return ValidationResult{Issues: issues}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func nonBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// waypointRule accepts explicit in-range coordinates or a non-blank airport
// code. A waypoint with only one coordinate falls back to its code.
func waypointRule(sl validator.StructLevel) {
	w := sl.Current().Interface().(model.Waypoint)
	if w.HasCoordinates() {
		if !w.Coordinate().Valid() {
			sl.ReportError(w.Lat, "lat", "Lat", "coordinates", "")
		}
		return
	}
	if strings.TrimSpace(w.IATA) == "" && strings.TrimSpace(w.ICAO) == "" {
		sl.ReportError(w.IATA, "iata", "IATA", "waypoint", "")
	}
}

func uniqueFlightIDs(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(model.SimulationConfig)
	seen := make(map[string]int, len(cfg.Flights))
	for i, f := range cfg.Flights {
		id := strings.TrimSpace(f.ID)
		if id == "" {
			continue
		}
		if first, ok := seen[id]; ok {
			sl.ReportError(f.ID, fmt.Sprintf("flights[%d].id", i), "ID", "unique", fmt.Sprintf("flights[%d]", first))
			continue
		}
		seen[id] = i
	}
}

// issuePath drops the root type name from a validator namespace.
func issuePath(ns string) string {
	_, rest, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return rest
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "nonblank", "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtefield":
		return "must not be below minFt"
	case "coordinates":
		return "coordinates must be finite and within range"
	case "waypoint":
		return "specify IATA/ICAO code or lat/lon"
	case "unique":
		return fmt.Sprintf("duplicates the id of %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

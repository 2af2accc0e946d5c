package model

import (
	"errors"
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// MaxMetricKeyLen bounds the length of a metric key.
const MaxMetricKeyLen = 255

// Validate checks every record of a create request.
func (r *CreateMetricsRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	for i, m := range r.Metrics {
		if err := ValidateIdentifier("run_id", m.RunID); err != nil {
			return fmt.Errorf("metrics[%d]: %w", i, err)
		}
		if m.ScenarioID != nil {
			if err := ValidateIdentifier("scenario_id", *m.ScenarioID); err != nil {
				return fmt.Errorf("metrics[%d]: %w", i, err)
			}
		}
		if err := validateData(m.Data); err != nil {
			return fmt.Errorf("metrics[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single-record update request.
func (r *UpdateMetricRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validateData(r.Metric.Data)
}

// Validate checks every record of a batch update request and rejects
// duplicate IDs.
func (r *UpdateMetricsRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(r.Metrics))
	for i, m := range r.Metrics {
		id := m.ID.String()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("metrics[%d]: duplicate id %s", i, id)
		}
		seen[id] = struct{}{}
		if err := validateData(m.Data); err != nil {
			return fmt.Errorf("metrics[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks an aggregation request.
func (r *AggregateRequest) Validate() error { return validate.Struct(r) }

func validateData(d MetricData) error {
	for k := range maps.Keys(d) {
		if k == "" {
			return errors.New("data: metric key must not be empty")
		}
		if len(k) > MaxMetricKeyLen {
			return fmt.Errorf("data: metric key exceeds %d characters", MaxMetricKeyLen)
		}
	}
	return nil
}

// ValidationMessage flattens validator errors into one readable line.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	msg := fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag())
	if fe.Param() != "" {
		msg += " (" + fe.Param() + ")"
	}
	if len(verrs) > 1 {
		msg += fmt.Sprintf(" and %d more", len(verrs)-1)
	}
	return msg
}

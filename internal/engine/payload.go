package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"automationdash/internal/core"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxFailures is used when the max-failures input is empty or not a
// positive integer.
const DefaultMaxFailures = 3

// Input is the raw create/update form.
type Input struct {
	Name           string
	Description    string
	TriggerType    core.TriggerType
	CronExpression string
	NextRunAt      *time.Time
	Timezone       string
	AgentMode      core.AgentMode
	WorkspaceID    string
	Instruction    string
	ThreadStrategy core.ThreadStrategy
	// MaxFailures is kept as typed text and coerced by ShapePayload.
	MaxFailures string
}

// ShapePayload builds the API payload from a form. Fields that do not apply
// to the trigger type or agent mode are dropped and empty strings are left
// unset so they are omitted on the wire.
func ShapePayload(in Input) core.Payload {
	p := core.Payload{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		TriggerType:    in.TriggerType,
		CronExpression: strings.TrimSpace(in.CronExpression),
		NextRunAt:      in.NextRunAt,
		Timezone:       strings.TrimSpace(in.Timezone),
		AgentMode:      in.AgentMode,
		WorkspaceID:    strings.TrimSpace(in.WorkspaceID),
		Instruction:    strings.TrimSpace(in.Instruction),
		ThreadStrategy: in.ThreadStrategy,
		MaxFailures:    coerceMaxFailures(in.MaxFailures),
	}

	switch p.TriggerType {
	case core.TriggerTypeCron:
		p.NextRunAt = nil
	case core.TriggerTypeOnce:
		p.CronExpression = ""
	}
	if !p.AgentMode.RequiresWorkspace() {
		p.WorkspaceID = ""
	}
	return p
}

func coerceMaxFailures(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultMaxFailures
	}
	return n
}

type payloadRules struct {
	Name           string `json:"name" validate:"required,max=200"`
	TriggerType    string `json:"trigger_type" validate:"required,oneof=cron once"`
	CronExpression string `json:"cron_expression" validate:"required_if=TriggerType cron"`
	HasRunAt       bool   `json:"next_run_at" validate:"required_if=TriggerType once"`
	AgentMode      string `json:"agent_mode" validate:"required,oneof=chat research sandbox code"`
	WorkspaceID    string `json:"workspace_id" validate:"required_if=AgentMode sandbox,required_if=AgentMode code"`
	Instruction    string `json:"instruction" validate:"required"`
	ThreadStrategy string `json:"thread_strategy" validate:"omitempty,oneof=new continue"`
	MaxFailures    int    `json:"max_failures" validate:"min=1"`
}

// PayloadValidator checks shaped payloads before they are sent.
type PayloadValidator struct {
	validate *validator.Validate
}

// NewPayloadValidator creates a validator reporting fields by their JSON names.
func NewPayloadValidator() *PayloadValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &PayloadValidator{validate: v}
}

// Validate returns a KindValidation *Error describing the first problem.
func (pv *PayloadValidator) Validate(op string, p core.Payload) error {
	rules := payloadRules{
		Name:           p.Name,
		TriggerType:    string(p.TriggerType),
		CronExpression: p.CronExpression,
		HasRunAt:       p.NextRunAt != nil,
		AgentMode:      string(p.AgentMode),
		WorkspaceID:    p.WorkspaceID,
		Instruction:    p.Instruction,
		ThreadStrategy: string(p.ThreadStrategy),
		MaxFailures:    p.MaxFailures,
	}
	if err := pv.validate.Struct(rules); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return validationError(op, describeFieldError(fieldErrs[0]))
		}
		return validationError(op, err.Error())
	}
	if p.TriggerType == core.TriggerTypeCron {
		if _, err := core.ParseCron(p.CronExpression); err != nil {
			return validationError(op, "cron_expression is not a valid 5-field cron expression")
		}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

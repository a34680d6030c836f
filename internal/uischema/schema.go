// Package uischema defines the typed UI contract emitted by the backend.
// The frontend renders dynamic components based on this schema -- it never
// decides what to show on its own.
package uischema

// UISchema is the top-level schema the backend emits for a job's state.
type UISchema struct {
	Version    string      `json:"ui_schema_version"`
	JobID      string      `json:"job_id"`
	Phase      string      `json:"phase"`
	Components []Component `json:"components"`
	Actions    []Action    `json:"actions"`
}

// ComponentType identifies what React component to render.
type ComponentType string

const (
	ComponentJobSummary       ComponentType = "job_summary"
	ComponentDecisionBanner   ComponentType = "decision_banner"
	ComponentDiscrepancyTable ComponentType = "discrepancy_table"
	ComponentPatternPanel     ComponentType = "pattern_panel"
	ComponentFailurePanel     ComponentType = "failure_panel"
	ComponentLookupTrace      ComponentType = "lookup_trace"
	ComponentReviewQueue      ComponentType = "review_queue"
)

// Visibility controls component rendering.
type Visibility string

const (
	VisibilityVisible   Visibility = "visible"
	VisibilityHidden    Visibility = "hidden"
	VisibilityCollapsed Visibility = "collapsed"
)

// Component is a single renderable UI element.
type Component struct {
	Type       ComponentType  `json:"type"`
	Title      string         `json:"title"`
	Priority   int            `json:"priority"`
	Visibility Visibility     `json:"visibility"`
	Data       map[string]any `json:"data,omitempty"`
}

// ActionUIType classifies the user-facing action.
type ActionUIType string

const (
	ActionAccept  ActionUIType = "accept"
	ActionCorrect ActionUIType = "correct"
	ActionCancel  ActionUIType = "cancel"
)

// ConfirmConfig describes confirmation requirements for risky actions.
type ConfirmConfig struct {
	Required        bool   `json:"required"`
	AcknowledgeText string `json:"acknowledge_text,omitempty"`
}

// Action is a user-triggerable operation from the UI.
type Action struct {
	Type    ActionUIType   `json:"type"`
	Label   string         `json:"label"`
	Confirm *ConfirmConfig `json:"confirm,omitempty"`
}

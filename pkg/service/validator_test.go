package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() Definition {
	return Definition{
		Name: "users",
		Port: 8040,
		Endpoints: []Endpoint{{
			Method:    "GET",
			Path:      "/users/{id}",
			Responses: []ResponseSpec{{Status: 200, Body: "{}"}},
		}},
	}
}

func TestValidateAccepts(t *testing.T) {
	def := validDefinition()
	require.NoError(t, def.Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		field   string
		message string
	}{
		{
			name:   "missing name",
			mutate: func(d *Definition) { d.Name = " " },
			field:  "name",
		},
		{
			name:   "port out of range",
			mutate: func(d *Definition) { d.Port = 70000 },
			field:  "port",
		},
		{
			name:   "base path without slash",
			mutate: func(d *Definition) { d.BasePath = "api/v1" },
			field:  "basePath",
		},
		{
			name:   "no endpoints",
			mutate: func(d *Definition) { d.Endpoints = nil },
			field:  "endpoints",
		},
		{
			name:   "bad method",
			mutate: func(d *Definition) { d.Endpoints[0].Method = "FETCH" },
			field:  "endpoints[0].method",
		},
		{
			name:   "path missing slash",
			mutate: func(d *Definition) { d.Endpoints[0].Path = "users" },
			field:  "endpoints[0].path",
		},
		{
			name:    "unbalanced braces",
			mutate:  func(d *Definition) { d.Endpoints[0].Path = "/users/{id" },
			field:   "endpoints[0].path",
			message: "malformed parameter",
		},
		{
			name:    "empty parameter name",
			mutate:  func(d *Definition) { d.Endpoints[0].Path = "/users/{}" },
			field:   "endpoints[0].path",
			message: "empty parameter",
		},
		{
			name:   "unknown strategy",
			mutate: func(d *Definition) { d.Endpoints[0].Strategy = "roundrobin" },
			field:  "endpoints[0].strategy",
		},
		{
			name: "zero candidates",
			mutate: func(d *Definition) {
				d.Endpoints[0].Responses = nil
			},
			field:   "endpoints[0]",
			message: "no response candidates",
		},
		{
			name: "both candidate forms",
			mutate: func(d *Definition) {
				d.Endpoints[0].ByStatus = map[int]ResponseSpec{200: {Body: "{}"}}
			},
			field:   "endpoints[0]",
			message: "not both",
		},
		{
			name: "malformed guard",
			mutate: func(d *Definition) {
				d.Endpoints[0].Responses[0].Guard = "request.method =="
			},
			field:   "endpoints[0].responses[0].guard",
			message: "malformed guard",
		},
		{
			name: "candidate status out of range",
			mutate: func(d *Definition) {
				d.Endpoints[0].Responses[0].Status = 42
			},
			field: "endpoints[0].responses[0].status",
		},
		{
			name: "scenario without fault",
			mutate: func(d *Definition) {
				d.Scenarios = []Scenario{{Name: "noop"}}
			},
			field: "scenarios[0]",
		},
		{
			name: "scenario latency inverted",
			mutate: func(d *Definition) {
				d.Scenarios = []Scenario{{Name: "slow", Latency: &LatencySpec{MinMs: 100, MaxMs: 10}}}
			},
			field: "scenarios[0].latency",
		},
		{
			name: "duplicate scenario name",
			mutate: func(d *Definition) {
				d.Scenarios = []Scenario{
					{Name: "slow", Latency: &LatencySpec{MinMs: 1, MaxMs: 2}},
					{Name: "slow", Latency: &LatencySpec{MinMs: 1, MaxMs: 2}},
				}
			},
			field: "scenarios[1].name",
		},
		{
			name: "scenario target without endpoint",
			mutate: func(d *Definition) {
				d.Scenarios = []Scenario{{
					Name:      "error-burst",
					Endpoints: []string{"GET /nowhere"},
					Error:     &ErrorSpec{Status: 503},
				}}
			},
			field: "scenarios[0].endpoints",
		},
		{
			name: "endpoint override names unknown scenario",
			mutate: func(d *Definition) {
				d.Endpoints[0].Scenario = "ghost"
			},
			field: "endpoints[0].scenario",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			err := def.Validate()
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			if tt.message != "" {
				assert.True(t, strings.Contains(vErr.Message, tt.message),
					"message %q should contain %q", vErr.Message, tt.message)
			}
		})
	}
}

func TestValidateByStatusForm(t *testing.T) {
	def := validDefinition()
	def.Endpoints[0].Responses = nil
	def.Endpoints[0].ByStatus = map[int]ResponseSpec{
		200: {Body: "{}"},
		404: {Body: `{"error":"not found"}`},
	}
	require.NoError(t, def.Validate())
}

func TestValidateScenarioTargetMethodCase(t *testing.T) {
	def := validDefinition()
	def.Scenarios = []Scenario{{
		Name:      "error-burst",
		Endpoints: []string{"get /users/{id}"},
		Error:     &ErrorSpec{Status: 503},
	}}
	require.NoError(t, def.Validate())
}

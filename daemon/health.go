/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
)

// HealthHelp is a help message used by flags in main
const HealthHelp = `The health formula is evaluated every report interval, 'health.ok' counter is set to its result.
supported variables:
  initialized (1 once the clock has been set, 0 otherwise)
  seconds_since_sync (seconds since the last accepted sync, very large if there was none)
  skew (seconds the clock was off at the last correction)
  sync_period (current sync period in seconds)
  timeouts (number of failed sync attempts)
  latency_avg (average sync latency in ms)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1`

var healthVariables = []string{
	"initialized",
	"seconds_since_sync",
	"skew",
	"sync_period",
	"timeouts",
	"latency_avg",
}

func isHealthVar(varName string) bool {
	for _, v := range healthVariables {
		if v == varName {
			return true
		}
	}
	return false
}

var healthFunctions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: argument is not a number")
		}
		return math.Abs(val), nil
	},
}

// Health decides whether the daemon is healthy
type Health struct {
	expr *govaluate.EvaluableExpression
}

// NewHealth parses the health formula
func NewHealth(exprStr string) (*Health, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, healthFunctions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isHealthVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return &Health{expr: expr}, nil
}

// Eval evaluates the formula against the values
func (h *Health) Eval(values map[string]float64) (bool, error) {
	params := make(map[string]interface{}, len(values))
	for k, v := range values {
		params[k] = v
	}
	res, err := h.expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, fmt.Errorf("health formula returned %v, not a boolean", res)
	}
	return ok, nil
}

// Package cel provides a CEL-based session-invalidity classifier. Operators
// whose access-control deployment signals session loss differently from the
// built-in heuristic can supply a CEL expression instead of patching code.
package cel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
)

// maxExpressionLength is the maximum allowed length for classifier expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single classification; expressions run on the hot path.
const evalTimeout = time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Classifier classifies upstream responses with a compiled CEL expression.
// The expression sees three variables and must return a boolean that is true
// when the response indicates a lost session:
//
//	status       int     HTTP status code
//	content_type string  Content-Type header value
//	body_prefix  string  first bytes of the body, lowercased
//
// Bootstrap acceptance stays on the heuristic rules: the expression only
// overrides how business responses are judged.
type Classifier struct {
	program  cel.Program
	fallback *upstream.HeuristicClassifier
}

// NewEnvironment creates the CEL environment with the classification variables.
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("status", cel.IntType),
		cel.Variable("content_type", cel.StringType),
		cel.Variable("body_prefix", cel.StringType),
	)
}

// NewClassifier compiles expression and returns a classifier backed by it.
// bootstrapStatuses configures the heuristic bootstrap acceptance; nil keeps
// the defaults.
func NewClassifier(expression string, bootstrapStatuses []int) (*Classifier, error) {
	if err := ValidateExpression(expression); err != nil {
		return nil, err
	}

	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return &Classifier{
		program:  prg,
		fallback: upstream.NewHeuristicClassifier(nil, bootstrapStatuses),
	}, nil
}

// Classify evaluates the expression against the response. Evaluation errors
// are resolved conservatively by deferring to the heuristic classifier: a
// broken expression must not convert valid business responses into retries.
func (c *Classifier) Classify(status int, contentType string, bodyPrefix []byte) upstream.Verdict {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := c.program.ContextEval(ctx, map[string]any{
		"status":       status,
		"content_type": contentType,
		"body_prefix":  strings.ToLower(string(bodyPrefix)),
	})
	if err != nil {
		return c.fallback.Classify(status, contentType, bodyPrefix)
	}

	invalid, ok := result.Value().(bool)
	if !ok {
		return c.fallback.Classify(status, contentType, bodyPrefix)
	}
	if invalid {
		return upstream.VerdictSessionInvalid
	}
	return upstream.VerdictValid
}

// BootstrapAccepted delegates to the heuristic rules.
func (c *Classifier) BootstrapAccepted(status int, contentType string, bodyPrefix []byte) bool {
	return c.fallback.BootstrapAccepted(status, contentType, bodyPrefix)
}

// ValidateExpression checks that a classifier expression is syntactically
// valid and within the safety limits. Used by config validation before any
// client is constructed.
func ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return err
	}

	env, err := NewEnvironment()
	if err != nil {
		return fmt.Errorf("create environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	return nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

var _ upstream.Classifier = (*Classifier)(nil)

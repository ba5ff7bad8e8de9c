package authz

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"authentico/internal/user/domain"
)

const opaQuery = "data.authentico.authz.allow"

// DefaultPolicy lets active users view and change objects they own.
const DefaultPolicy = `package authentico.authz

default allow := false

owner_actions := {"view", "change"}

allow if {
	input.user.is_active
	input.object.attributes.owner_id == input.user.id
	parts := split(input.perm, ".")
	count(parts) == 2
	owner_actions[split(parts[1], "_")[0]]
}
`

// OPABackend answers permission checks by evaluating a Rego policy. The policy must
// define data.authentico.authz.allow over input {user, perm, object}.
type OPABackend struct {
	policy   string
	compiler *ast.Compiler
	query    rego.PreparedEvalQuery
}

// NewOPABackend compiles policy, or DefaultPolicy when policy is empty.
func NewOPABackend(ctx context.Context, policy string) (*OPABackend, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(opaQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPABackend{policy: policy, compiler: compiler, query: pq}, nil
}

// NewOPABackendFromFile reads a Rego policy from path. An empty path uses DefaultPolicy.
func NewOPABackendFromFile(ctx context.Context, path string) (*OPABackend, error) {
	if path == "" {
		return NewOPABackend(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return NewOPABackend(ctx, string(b))
}

func (b *OPABackend) Name() string { return "opa" }

func (b *OPABackend) HasPerm(ctx context.Context, user *domain.User, perm string, obj *Object) (bool, error) {
	rs, err := b.query.Eval(ctx, rego.EvalInput(buildInput(user, perm, obj)))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// HealthCheck verifies the policy compiles and evaluates to a defined result.
// Policies should declare a default for allow.
func (b *OPABackend) HealthCheck(ctx context.Context) error {
	q := rego.New(
		rego.Query(opaQuery),
		rego.Compiler(b.compiler),
		rego.Input(buildInput(&domain.User{}, "", nil)),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

func buildInput(user *domain.User, perm string, obj *Object) map[string]interface{} {
	userMap := map[string]interface{}{
		"id":           user.ID,
		"email":        user.Email,
		"is_active":    user.IsActive,
		"is_staff":     user.IsStaff,
		"is_superuser": user.IsSuperuser,
	}
	var objMap interface{}
	if obj != nil {
		attrs := obj.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		objMap = map[string]interface{}{
			"type":       obj.Type,
			"id":         obj.ID,
			"attributes": attrs,
		}
	}
	return map[string]interface{}{
		"user":   userMap,
		"perm":   perm,
		"object": objMap,
	}
}

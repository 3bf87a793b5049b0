package kaiza

import (
	"context"

	"github.com/kaiza-dev/kaiza/pkg/ksession"
)

// toolInitialize is the handler for `initialize`: it locks
// the workspace root and binds the role for the session's lifetime.
// Dispatch calls this before any gate check, since initialize is the one
// tool accepted while the session is unbound.
func toolInitialize(ctx context.Context, k *Kernel, args map[string]interface{}) (interface{}, string, string, string, string, error) {
	root, err := stringArg(args, "workspace_root")
	if err != nil {
		return nil, "", "", "", "", err
	}
	roleStr, err := stringArg(args, "role")
	if err != nil {
		return nil, "", "", "", "", err
	}
	role, err := ksession.ParseRole(roleStr)
	if err != nil {
		return nil, "", "", "", "", err
	}

	if err := k.session.Initialize(ctx, root, role); err != nil {
		return nil, "", "", "", "", err
	}
	return map[string]interface{}{
		"session_id":     k.session.ID(),
		"role":           string(role),
		"workspace_root": root,
	}, "", "", "", "", nil
}

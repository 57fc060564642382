package registry

import (
	"context"

	"github.com/aretw0/toolbox/pkg/domain"
)

// Call is what an Interceptor sees before a capability runs.
type Call struct {
	ID      string
	Name    string
	Params  map[string]any
	Context domain.ToolContext
}

// Interceptor can block a call before it reaches the capability.
// It returns true to proceed. When it returns false, the Result it returns is
// handed back to the caller in place of the capability's output.
type Interceptor func(ctx context.Context, call Call) (bool, domain.Result, error)

// Confirmer asks a human whether a call may proceed.
type Confirmer func(ctx context.Context, call Call, message string) (bool, error)

// Chain runs interceptors in order and stops at the first one that blocks.
func Chain(interceptors ...Interceptor) Interceptor {
	return func(ctx context.Context, call Call) (bool, domain.Result, error) {
		for _, interceptor := range interceptors {
			allowed, result, err := interceptor(ctx, call)
			if err != nil {
				return false, domain.Result{}, err
			}
			if !allowed {
				return false, result, nil
			}
		}
		return true, domain.Result{}, nil
	}
}

// ConfirmDangerous asks confirm before any call for which RequiresConfirmation holds.
// Other calls pass straight through.
func ConfirmDangerous(enabled bool, confirm Confirmer) Interceptor {
	return func(ctx context.Context, call Call) (bool, domain.Result, error) {
		if !RequiresConfirmation(call.Name, enabled) {
			return true, domain.Result{}, nil
		}
		ok, err := confirm(ctx, call, ConfirmationMessage(call.Name, call.Params))
		if err != nil {
			return false, domain.Result{}, err
		}
		if !ok {
			return false, domain.Failure("Execution of '%s' was cancelled by the user.", call.Name), nil
		}
		return true, domain.Result{}, nil
	}
}

// AutoApprove allows everything.
func AutoApprove() Interceptor {
	return func(ctx context.Context, call Call) (bool, domain.Result, error) {
		return true, domain.Result{}, nil
	}
}

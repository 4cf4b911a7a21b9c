package flows

import (
	"context"
	"fmt"

	"github.com/merbs-org/clientauth/api"
)

// VerifyDeps captures session verification dependencies.
type VerifyDeps struct {
	CallVerify func(ctx context.Context) (*api.Envelope, error)

	MetricInc func(int)

	VerifySuccess int
	VerifyFailure int

	EngineNotReady     error
	VerificationFailed error
}

// RunVerify asks the backend whether the restored session is still accepted.
// A transport error, success:false or a missing data payload are all failures.
func RunVerify(ctx context.Context, deps VerifyDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.CallVerify == nil {
		return deps.EngineNotReady
	}

	env, err := deps.CallVerify(ctx)
	if err != nil {
		deps.MetricInc(deps.VerifyFailure)
		return fmt.Errorf("%w: %w", deps.VerificationFailed, err)
	}
	if !env.Success || !env.HasData() {
		deps.MetricInc(deps.VerifyFailure)
		return fmt.Errorf("%w: backend did not confirm the session", deps.VerificationFailed)
	}

	deps.MetricInc(deps.VerifySuccess)
	return nil
}

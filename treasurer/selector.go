package treasurer

import (
	"errors"
	"fmt"

	"github.com/kmjones1979/ampersend-sdk/types"
)

var ErrNoMatchingRequirement = errors.New("no matching payment requirement")

// RequirementSelector picks which advertised requirement to pay.
type RequirementSelector func(accepts []types.PaymentRequirements) (*types.PaymentRequirements, error)

// SelectFirst takes the server's first option.
func SelectFirst() RequirementSelector {
	return SelectIndex(0)
}

func SelectIndex(i int) RequirementSelector {
	return func(accepts []types.PaymentRequirements) (*types.PaymentRequirements, error) {
		if i < 0 || i >= len(accepts) {
			return nil, fmt.Errorf("%w: index %d of %d", ErrNoMatchingRequirement, i, len(accepts))
		}
		return &accepts[i], nil
	}
}

// SelectWhere takes the first option satisfying pred.
func SelectWhere(pred func(*types.PaymentRequirements) bool) RequirementSelector {
	return func(accepts []types.PaymentRequirements) (*types.PaymentRequirements, error) {
		for i := range accepts {
			if pred(&accepts[i]) {
				return &accepts[i], nil
			}
		}
		return nil, ErrNoMatchingRequirement
	}
}

func SelectNetwork(network types.Network) RequirementSelector {
	return SelectWhere(func(r *types.PaymentRequirements) bool {
		return r.Network == network.String()
	})
}

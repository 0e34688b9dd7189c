package strategy

import (
	"fmt"
	"strings"

	"github.com/arloliu/vario/types"
)

// Policy names accepted by New.
const (
	PolicyEpsilonGreedy = "epsilon-greedy"
	PolicyStatic        = "static"
)

// New builds a policy by name.
//
// Parameters:
//   - name: PolicyEpsilonGreedy (default when empty) or PolicyStatic
//   - epsilon: Exploration share for epsilon-greedy, ignored by static
//
// Returns:
//   - types.ReallocationPolicy: The policy
//   - error: ErrUnknownPolicy or ErrInvalidEpsilon
func New(name string, epsilon float64) (types.ReallocationPolicy, error) {
	switch strings.ToLower(name) {
	case "", PolicyEpsilonGreedy:
		if !ValidEpsilon(epsilon) {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidEpsilon, epsilon)
		}

		return NewEpsilonGreedy(WithEpsilon(epsilon)), nil
	case PolicyStatic:
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

/*
Package rewards manages the VIP combo: a one-time discount a client earns
by becoming VIP in a window.

PURPOSE:
  Decides when a combo is granted and makes sure it is spent at most once
  per qualifying cycle, even when two orders for the same client are
  processed at the same time.

LIFECYCLE:
  1. Client transitions into VIP for the window, no combo outstanding
     -> GrantCombo (false -> true)
  2. Client orders at least ComboMinOrderValue and applies the combo
     -> ConsumeCombo (true -> false)
  3. A second consume in the same cycle finds the flag already false
     -> ConsumeAlreadyConsumed, no second discount

WHY COMPARE-AND-SET:
  The flag lives in the client registry, not in this package. Two callers
  that both read combo_available = true and then both write false would
  both hand out the discount. The registry's conditional update is the
  only write path, and its boolean result is the only truth.

EXAMPLE:
  mgr := rewards.NewManager(registry, cfg)

  if err := mgr.CheckOrder(order.Amount); err != nil {
      // below minimum, do not offer the combo
  }
  result, err := mgr.Consume(ctx, clientID)
  switch {
  case err != nil:
      // store failure: combo NOT consumed, do not discount
  case result == rewards.ConsumeAlreadyConsumed:
      // someone else already used it this cycle
  default:
      // apply mgr.RewardValue() to the order
  }

SEE ALSO:
  - vip/store.go: ClientRegistry.ConsumeCombo / GrantCombo
  - combo.go: Manager
*/
package rewards

import "github.com/warp/vip-engine/generic"

// =============================================================================
// OUTCOMES
// =============================================================================

// ConsumeResult is the outcome of a consumption attempt. Both values are
// normal results the caller branches on.
type ConsumeResult string

const (
	ConsumeApplied         ConsumeResult = "applied"
	ConsumeAlreadyConsumed ConsumeResult = "already_consumed"
)

// Err maps the outcome to generic.ErrAlreadyConsumed for callers that
// prefer errors.Is over a switch.
func (r ConsumeResult) Err() error {
	if r == ConsumeAlreadyConsumed {
		return generic.ErrAlreadyConsumed
	}
	return nil
}

// GrantResult is the outcome of a grant attempt.
type GrantResult string

const (
	GrantAwarded     GrantResult = "awarded"
	GrantNotEligible GrantResult = "not_eligible"
	GrantOutstanding GrantResult = "outstanding" // a combo was already available
)

package point

import (
	"time"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
)

// Single source of truth for the balance subsystem's tunables.
const (
	// Timer allowance: one ruby per whole interval, capped at TimerMax
	RefillInterval = 2 * time.Hour
	TimerMax       = 15

	// Rubies granted by the first check-in of a KST calendar day
	CheckInReward = 10

	// Webhook claims outlive any realistic redelivery window; failed
	// processing releases the claim explicitly, the TTL is a backstop
	ClaimTTL = 24 * time.Hour

	refillLockTTL = 5 * time.Second

	// Seeded balances expire quickly so the cache never diverges from
	// the ledger for long after a crash
	balanceTTL = 10 * time.Minute
)

// Fixed cost of one chat turn per model. Zero-cost models short-circuit
// without touching the cache or the ledger.
var chatTurnCosts = map[string]int64{
	"gpt-4o-mini":   0,
	"gpt-4o":        2,
	"claude-sonnet": 2,
	"claude-opus":   5,
	"gemini-flash":  0,
	"gemini-pro":    2,
}

// ChatTurnCost returns the ruby cost of one turn for the model.
// Unknown models are rejected, not defaulted: silently charging 0 for a
// typo would leak paid turns.
func ChatTurnCost(modelID string) (int64, error) {
	cost, ok := chatTurnCosts[modelID]
	if !ok {
		return 0, apperrors.ErrUnknownModel
	}

	return cost, nil
}

package domain

import (
	"fmt"
	"math/rand/v2"
)

// AgentID is an ephemeral display handle. It is regenerated on every
// session, carries no trust, and is never used for authorization.
type AgentID string

var agentAdjectives = []string{
	"Silent", "Shadow", "Ghost", "Phantom", "Stealth", "Covert", "Hidden", "Secret",
}

// GenerateAgentID produces a handle like "Phantom-042". Purely local,
// always succeeds.
func GenerateAgentID() AgentID {
	adjective := agentAdjectives[rand.IntN(len(agentAdjectives))]
	number := rand.IntN(999) + 1
	return AgentID(fmt.Sprintf("%s-%03d", adjective, number))
}

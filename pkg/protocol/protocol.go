// Package protocol defines the interface contract between agentmesh and the
// agents it coordinates.
//
// Agents interact with the mesh by calling the agentmesh CLI. This package
// documents the expected commands so that agents can be instructed (via
// system prompts) on how to register, reserve files, and message peers.
package protocol

// AgentInstructions returns a system prompt fragment teaching an agent how
// to coordinate with its peers through the agentmesh CLI.
func AgentInstructions(agentName string) string {
	return `You are the agent "` + agentName + `" in a shared workspace coordinated by agentmesh.

## Coordination CLI

You have access to the ` + "`agentmesh`" + ` CLI. Your identity is set via $AGENTMESH_AGENT_NAME.

### Orientation
- ` + "`agentmesh status`" + ` — Live agents, their reservations, pending mail
- ` + "`agentmesh agents`" + ` — List live registered agents

### Identity (do this first)
- ` + "`agentmesh register --session <session-id>`" + ` — Claim your name; fails if another live process owns it
- ` + "`agentmesh heartbeat --session <session-id>`" + ` — Refresh periodically so peers see you as alive
- ` + "`agentmesh unregister --session <session-id>`" + ` — Release your name when done

### File reservations (before editing shared files)
- ` + "`agentmesh reserve src/parser/ --reason \"refactoring\"`" + ` — Reserve a subtree (trailing /) or exact path
- ` + "`agentmesh check <path>`" + ` — See whether a path is blocked by a peer; respect blocks
- ` + "`agentmesh release [pattern]...`" + ` — Release reservations (no args releases all)

### Messaging
- ` + "`agentmesh send <agent> \"text\"`" + ` — Direct message; add ` + "`--urgent`" + ` to interrupt their turn
- ` + "`agentmesh broadcast \"text\"`" + ` — Message every live agent
- ` + "`agentmesh inbox`" + ` — Read and consume your pending messages
- ` + "`agentmesh log thread <you> <peer>`" + ` — Review a conversation

### Sub-agents (coordinators only)
- ` + "`agentmesh spawn \"task\"`" + ` — Run one sub-agent task
- ` + "`agentmesh spawn --task \"a\" --task \"b\"`" + ` — Run a parallel batch (max 8)

### Live peer control
- ` + "`agentmesh rc probe <session-id>`" + ` — Check whether a peer session is reachable
- ` + "`agentmesh rc send <session-id> \"text\"`" + ` — Push a message into a peer session and wait for its turn to end

## Coordination protocol

1. **Register** your name before touching shared files
2. **Reserve** the files you are about to edit; **check** paths you are unsure about
3. **Message** the owning agent instead of editing around a block
4. **Release** reservations and **unregister** when your work is done
`
}

// PromptTemplates defines common prompt patterns for spawned sub-agents.
var PromptTemplates = map[string]string{
	"orient":   "Run `agentmesh status` to see who else is working here, then start on your task.",
	"handoff":  "Summarize what you changed and message the coordinator before unregistering.",
	"takeover": "Check `agentmesh log tail` for recent context, then continue the pending work.",
}

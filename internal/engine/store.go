// Package engine implements the Analytics Engine (spec §4.10): the
// orchestrator that fans conversations out to the four analyzers,
// persists their output via the repositories, and assembles cached
// reports.
package engine

import (
	"context"

	"github.com/steveyegge/convanalytics/internal/types"
)

// MessageStore is the external, read-only collaborator owning
// conversations and messages (spec §6). The default adapter,
// repository.MySQLStore, reads from the same relational engine the
// analytics repositories write to; any implementation works as long as
// it satisfies this contract.
type MessageStore interface {
	GetConversation(ctx context.Context, id string) (types.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]types.Message, error)
}

package contract

import (
	"context"

	"github.com/google/uuid"
)

// ISnapshotRepository is the durable store behind the persistence adapter:
// two named slots per session, each holding one serialized snapshot. Absence
// of a slot is a valid, expected state.
type ISnapshotRepository interface {
	Save(ctx context.Context, sessionId uuid.UUID, slot string, payload []byte) error
	Load(ctx context.Context, sessionId uuid.UUID, slot string) ([]byte, bool, error)
	Clear(ctx context.Context, sessionId uuid.UUID) error
}

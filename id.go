package arena

import "github.com/lemon-tea-ai/arena/id"

// ID is the primary identifier type for all arena entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

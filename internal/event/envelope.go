package event

import (
	"time"
)

// EventType discriminator for operation records
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeLiquidityAdded
	EventTypeLiquidityRemoved
	EventTypeFeeWithdrawn
	EventTypeAssetReserved
	EventTypeAssetReleased
	EventTypeParamsUpdated
)

// Envelope wraps every operation record in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable operation identifier (UUID)
	OperationID string

	// Record type discriminator
	EventType EventType

	// Token context (empty for global records)
	Token string

	// Engine clock at commit time
	Timestamp time.Time

	// Operation-specific data, JSON-encoded downstream
	Payload Event
}

// Event is the interface all operation payloads implement
type Event interface {
	// OperationID returns the stable record identifier
	OperationID() string

	// EventType returns the discriminator
	EventType() EventType

	// Token returns the token context (empty for global records)
	Token() string
}

func (et EventType) String() string {
	switch et {
	case EventTypeLiquidityAdded:
		return "LiquidityAdded"
	case EventTypeLiquidityRemoved:
		return "LiquidityRemoved"
	case EventTypeFeeWithdrawn:
		return "FeeWithdrawn"
	case EventTypeAssetReserved:
		return "AssetReserved"
	case EventTypeAssetReleased:
		return "AssetReleased"
	case EventTypeParamsUpdated:
		return "ParamsUpdated"
	default:
		return "Unknown"
	}
}

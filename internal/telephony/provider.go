package telephony

import (
	"context"

	"voiceai-platform/pkg/utils"
)

// CallInitiator defines the provider-agnostic interface used by business logic
// to start outbound voice-agent calls.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; store provider raw payloads
//   in metadata if needed.
type CallInitiator interface {
	Name() string
	HealthCheck(ctx context.Context) error

	StartCall(ctx context.Context, req StartCallRequest) (CallInfo, error)
	GetCall(ctx context.Context, callID string) (CallInfo, error)
	ListCalls(ctx context.Context) ([]CallInfo, error)
}

// StartCallRequest asks the provider to dial phoneNumber with the given agent.
type StartCallRequest struct {
	// AgentID selects the voice agent configuration at the provider.
	AgentID string `json:"agentId"`

	// PhoneNumber is E.164 where possible.
	PhoneNumber string `json:"phoneNumber"`

	// Metadata is opaque to the provider and echoed back on events.
	Metadata utils.JSONMap `json:"metadata,omitempty"`
}

// CallInfo is the provider's view of a call.
type CallInfo struct {
	// ID is the provider-assigned call identifier; it becomes the call_sid
	// of the persisted record.
	ID string `json:"id"`

	AgentID     string `json:"agentId,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Status      string `json:"status,omitempty"`

	Metadata utils.JSONMap `json:"metadata,omitempty"`
}

// Agent is a provider-side voice agent configuration.
type Agent struct {
	ID     string        `json:"id"`
	Name   string        `json:"name,omitempty"`
	Config utils.JSONMap `json:"config,omitempty"`
}

// Package channels implements the outbound/inbound contracts for the
// omnichannel vendor gateways (spec §6): each adapter exposes a send
// operation returning a provider-native message id, and an inbound webhook
// handler that normalizes vendor payloads into the shape the Router and
// message store need. Internals of the vendor APIs are explicitly out of
// scope (spec §1 Non-goals); these adapters cover the request/response
// shapes needed to exercise that contract, grounded on the PostJSON/GetJSON
// helpers the AI-bridge example uses for its own outbound HTTP calls to
// external chat platforms (pkg/shared/httputil).
package channels

import "context"

// Adapter is the contract every vendor gateway satisfies: Send and Name.
// Dispatcher, not Adapter, implements router.ChannelSender by routing to the
// Adapter registered under the channel name. Inbound normalization and the
// device-session operations are not part of this interface.
type Adapter interface {
	// Send dispatches text to recipient and returns the provider's message id.
	Send(ctx context.Context, recipient, text string) (providerMessageID string, err error)
	// Name identifies the adapter for the "channel" column and routing table.
	Name() string
}

// Inbound is a normalized inbound message, independent of which vendor it
// arrived from. Webhook handlers in pkg/api translate vendor-specific JSON
// into this shape before calling the Router.
type Inbound struct {
	Channel          string
	ChannelContactID string // vendor-native sender id, used to materialize/look up the ExternalContact
	ChannelMessageID string // vendor-native message id, for re-delivery dedup
	DisplayName      string
	Phone            string
	Text             string
}

package server

import "github.com/kmjones1979/ampersend-sdk/a2a"

// DeclareExtension advertises x402 support on card. Calling it twice is harmless.
func DeclareExtension(card *a2a.AgentCard) *a2a.AgentCard {
	for _, ext := range card.Capabilities.Extensions {
		if ext.URI == a2a.X402ExtensionURI {
			return card
		}
	}
	card.Capabilities.Extensions = append(card.Capabilities.Extensions, a2a.X402Declaration())
	return card
}

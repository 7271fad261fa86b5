package api

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	siwe "github.com/spruceid/siwe-go"
)

const siweStatement = "Sign in to API"

// siweMessage renders the EIP-4361 sign-in request for address against the
// API at baseURL. The API accepts chain id 1 for every network.
func siweMessage(baseURL string, address common.Address, nonce string, issuedAt time.Time) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	msg, err := siwe.InitMessage(u.Host, address.Hex(), baseURL, nonce, map[string]interface{}{
		"statement": siweStatement,
		"chainId":   1,
		"issuedAt":  issuedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	})
	if err != nil {
		return "", fmt.Errorf("invalid sign-in message: %w", err)
	}
	return msg.String(), nil
}

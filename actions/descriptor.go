// Package actions builds Solana Actions discovery payloads. Everything here
// is a pure function of configuration and the request origin.
package actions

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/barkprotocol/blinks/types"
)

// MaxPresets bounds the one-click links in a descriptor
const MaxPresets = 4

// PathPrefix is where action endpoints are mounted
const PathPrefix = "/actions/"

// Describe returns the descriptor for action. Presets become one-click links;
// requested is added in front of them when it is not already a preset. A
// single parametrized link follows for arbitrary input.
func Describe(
	baseURL string,
	action types.ActionConfig,
	asset types.AssetKind,
	recipient solana.PublicKey,
	presets []decimal.Decimal,
	requested *decimal.Decimal,
) types.ActionDescriptor {
	descriptor := types.ActionDescriptor{
		Type:        "action",
		Title:       action.Title,
		Icon:        action.Icon,
		Description: action.Description,
		Label:       action.Label,
	}

	href := ActionURL(baseURL, action.Name) + "?to=" + recipient.String()

	if asset.IsMemo() {
		descriptor.Links.Actions = []types.ActionLink{{
			Type:  "transaction",
			Label: labelOr(action.Label, "Send memo"),
			Href:  href + "&memo={memo}",
			Parameters: []types.ActionParameter{{
				Name:     "memo",
				Label:    "Enter a message",
				Required: true,
			}},
		}}
		return descriptor
	}

	links := make([]types.ActionLink, 0, MaxPresets+1)
	for _, amount := range presetAmounts(presets, requested) {
		links = append(links, types.ActionLink{
			Type:  "transaction",
			Label: fmt.Sprintf("Send %s %s", amount.String(), asset.Symbol),
			Href:  href + "&amount=" + url.QueryEscape(amount.String()),
		})
	}

	links = append(links, types.ActionLink{
		Type:  "transaction",
		Label: fmt.Sprintf("Send %s", asset.Symbol),
		Href:  href + "&amount={amount}",
		Parameters: []types.ActionParameter{{
			Name:     "amount",
			Label:    fmt.Sprintf("Enter the amount of %s to send", asset.Symbol),
			Required: true,
		}},
	})

	descriptor.Links.Actions = links
	return descriptor
}

func presetAmounts(presets []decimal.Decimal, requested *decimal.Decimal) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, MaxPresets)

	if requested != nil && requested.IsPositive() && !containsAmount(presets, *requested) {
		amounts = append(amounts, *requested)
	}
	for _, p := range presets {
		if len(amounts) == MaxPresets {
			break
		}
		amounts = append(amounts, p)
	}

	return amounts
}

func containsAmount(amounts []decimal.Decimal, d decimal.Decimal) bool {
	for _, a := range amounts {
		if a.Equal(d) {
			return true
		}
	}
	return false
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}

// ActionURL is the absolute URL of an action endpoint
func ActionURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + PathPrefix + url.PathEscape(name)
}

// Origin returns scheme://host of r. Proxy headers are honoured only when
// trustForwarded is set. A configured override wins.
func Origin(r *http.Request, override string, trustForwarded bool) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if trustForwarded {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
			host = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}

	return scheme + "://" + host
}

// Headers are sent with every action and actions.json response, including
// OPTIONS pre-flight.
func Headers(cluster types.Cluster) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":   "*",
		"Access-Control-Allow-Methods":  "GET,POST,PUT,DELETE,OPTIONS",
		"Access-Control-Allow-Headers":  "Content-Type, Authorization, Content-Encoding, Accept-Encoding, X-Accept-Action-Version, X-Accept-Blockchain-Ids",
		"Access-Control-Expose-Headers": "X-Action-Version, X-Blockchain-Ids",
		"X-Action-Version":              types.ActionVersion,
		"X-Blockchain-Ids":              cluster.BlockchainID(),
	}
}

package middleware

import (
	"context"
	"strings"

	"github.com/miladsoleymani/dispatchmux/core"
)

// Normalize rewrites the from_addr of inbound messages to international
// E.164-style form using a configured default country code. Short codes
// (five digits or fewer) pass through untouched.
type Normalize struct {
	core.MiddlewareBase
	countryCode string
}

// NewNormalize creates the middleware for the given default country code.
func NewNormalize(countryCode string) *Normalize {
	return &Normalize{countryCode: countryCode}
}

// NewNormalizeFromConfig builds the middleware from its configuration
// subtree, which must carry country_code.
func NewNormalizeFromConfig(_ *core.Dispatcher, conf map[string]any) (core.Middleware, error) {
	cc := stringOption(conf, "country_code", "")
	if cc == "" {
		return nil, core.NewConfigError("country_code is required for the normalize_msisdn middleware")
	}
	return NewNormalize(cc), nil
}

func (n *Normalize) HandleInbound(_ context.Context, msg *core.UserMessage, _ string) (*core.UserMessage, error) {
	msg.FromAddr = normalizeMSISDN(msg.FromAddr, n.countryCode)
	return msg, nil
}

// normalizeMSISDN converts a raw address to +<country><subscriber>
// form: "00" and "0" prefixes are replaced by "+"/"+<cc>", and a bare
// country-code prefix gains a "+". Anything of five characters or
// fewer is treated as a short code and returned as-is.
func normalizeMSISDN(raw, countryCode string) string {
	var b strings.Builder
	for _, c := range raw {
		if c == '+' || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	addr := b.String()

	if len(addr) <= 5 {
		return addr
	}
	switch {
	case strings.HasPrefix(addr, "00"):
		return "+" + addr[2:]
	case strings.HasPrefix(addr, "0"):
		return "+" + countryCode + addr[1:]
	case strings.HasPrefix(addr, "+"):
		return addr
	case strings.HasPrefix(addr, countryCode):
		return "+" + addr
	}
	return addr
}

package billing

import (
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the accepted age of a signed webhook.
const DefaultTolerance = 5 * time.Minute

// ErrMalformedPayload is returned for events whose object cannot be decoded.
var ErrMalformedPayload = errors.New("billing: malformed webhook payload")

// ConstructEvent verifies the signature header of a webhook body and decodes
// the event. Events of any API version are accepted: only the ids, status
// and metadata of the object are read.
func ConstructEvent(payload []byte, header, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}

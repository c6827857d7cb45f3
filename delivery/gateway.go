// Package delivery abstracts how one-time codes reach the account
// holder. The engine only ever hands a gateway an identifier and a
// code; rendering and transport are the gateway's problem.
package delivery

import (
	"context"
	"errors"
)

// Channel selects the transport for a one-time code.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ErrChannelUnsupported is returned when a gateway cannot deliver on
// the requested channel.
var ErrChannelUnsupported = errors.New("delivery channel unsupported")

// Gateway delivers a one-time code to an account identifier.
type Gateway interface {
	Send(ctx context.Context, identifier, code string, channel Channel) error
}

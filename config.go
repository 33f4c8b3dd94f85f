package signalr

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// defaultHandshakeTimeout is the time start() waits for the handshake frame
// before failing with a ProtocolError.
const defaultHandshakeTimeout = 15 * time.Second

var configValidator = validator.New()

// ClientConfig carries the HTTP headers applied to every negotiate/connect
// request and the per-transport tuning knobs. It is only mutable while the
// owning Connection is disconnected; see Connection.SetClientConfig.
type ClientConfig struct {
	// Headers are applied verbatim to every outgoing negotiate and websocket
	// upgrade request.
	Headers map[string]string

	// HandshakeTimeout bounds how long start() waits for the handshake
	// frame after the transport connects.
	HandshakeTimeout time.Duration `validate:"gte=0"`
}

// NewClientConfig returns a ClientConfig with an empty header set and the
// default 15 second handshake timeout.
func NewClientConfig() ClientConfig {
	return ClientConfig{
		Headers:          make(map[string]string),
		HandshakeTimeout: defaultHandshakeTimeout,
	}
}

// clone returns a deep copy so that mutating the result never mutates the
// caller's config. The negotiate engine relies on this to keep the
// redirect-scoped Authorization header from leaking back into the config the
// caller passed to SetClientConfig.
func (c ClientConfig) clone() ClientConfig {
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = v
	}
	return ClientConfig{
		Headers:          headers,
		HandshakeTimeout: c.HandshakeTimeout,
	}
}

// withAuthorization returns a clone of c with the Authorization header set
// to a bearer token, for use during a negotiate redirect.
func (c ClientConfig) withAuthorization(token string) ClientConfig {
	cfg := c.clone()
	cfg.Headers["Authorization"] = "Bearer " + token
	return cfg
}

func validateClientConfig(cfg ClientConfig) error {
	for k := range cfg.Headers {
		if k == "" {
			return errors.New("client config: header name must not be empty")
		}
	}
	if err := configValidator.Struct(cfg); err != nil {
		return errors.Wrap(err, "client config")
	}
	return nil
}

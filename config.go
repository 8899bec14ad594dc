package pgnative

// Config is the caller-supplied connection configuration. Recognized keys
// steer the startup sequence; everything else is forwarded verbatim as a
// StartupMessage run-time parameter, including the deprecated "options" key.
type Config map[string]string

// connectionLocalKeys are consumed by Open and never sent as a
// StartupMessage run-time parameter.
var connectionLocalKeys = map[string]bool{
	"host":     true,
	"port":     true,
	"password": true,
}

const defaultPort = "5432"

func (c Config) get(key, fallback string) string {
	if v, ok := c[key]; ok {
		return v
	}
	return fallback
}

// host returns the configured host, or the empty string if unset.
func (c Config) host() string { return c["host"] }

// port returns the configured port, defaulting to 5432.
func (c Config) port() string { return c.get("port", defaultPort) }

// user returns the configured user.
func (c Config) user() string { return c["user"] }

// password returns the configured password and whether one was supplied.
func (c Config) password() (string, bool) {
	p, ok := c["password"]
	return p, ok
}

// startupParameters returns every config key except the connection-local
// ones, for inclusion in the StartupMessage.
func (c Config) startupParameters() map[string]string {
	params := make(map[string]string, len(c))
	for k, v := range c {
		if connectionLocalKeys[k] {
			continue
		}
		params[k] = v
	}
	return params
}

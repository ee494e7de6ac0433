package credentials

// SimpleConfig is a plain value implementation of Config. Useful for tests
// and for wiring from whatever configuration layer the host application uses.
type SimpleConfig struct {
	MasterSecret    string   `json:"master_secret"`
	CipherSalt      string   `json:"cipher_salt"`
	SigningKey      string   `json:"signing_key"`
	TokenExpiration int      `json:"token_expiration"`
	Issuer          string   `json:"issuer"`
	Audience        []string `json:"audience"`
	ResetTTLHours   int      `json:"reset_ttl_hours"`
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetMasterSecret() string { return c.MasterSecret }

func (c *SimpleConfig) GetCipherSalt() string { return c.CipherSalt }

func (c *SimpleConfig) GetSigningKey() string { return c.SigningKey }

// GetTokenExpiration returns the session token TTL in hours
func (c *SimpleConfig) GetTokenExpiration() int {
	if c.TokenExpiration <= 0 {
		return 24
	}
	return c.TokenExpiration
}

func (c *SimpleConfig) GetIssuer() string { return c.Issuer }

func (c *SimpleConfig) GetAudience() []string { return c.Audience }

// GetResetTTLHours returns the default password reset token TTL in hours
func (c *SimpleConfig) GetResetTTLHours() int {
	if c.ResetTTLHours <= 0 {
		return 24
	}
	return c.ResetTTLHours
}

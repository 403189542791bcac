package request

import "strings"

type ConnectDomain struct {
	Hostname string `json:"hostname" validate:"required,custom_hostname"`
}

// Normalize lower-cases the hostname and strips a trailing dot.
func (c *ConnectDomain) Normalize() {
	c.Hostname = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(c.Hostname)), ".")
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExternalProvider identifies a federated identity provider. Values are
// persisted, do not renumber.
type ExternalProvider int16

const (
	ProviderGoogle   ExternalProvider = 0
	ProviderFacebook ExternalProvider = 1
)

var providerNames = map[ExternalProvider]string{
	ProviderGoogle:   "google",
	ProviderFacebook: "facebook",
}

func (p ExternalProvider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return fmt.Sprintf("provider(%d)", int16(p))
}

// ParseExternalProvider resolves a provider by its lowercase name.
func ParseExternalProvider(name string) (ExternalProvider, error) {
	for p, n := range providerNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown external provider %q", name)
}

// ExternalLogin links a provider identity to exactly one user.
type ExternalLogin struct {
	Provider       ExternalProvider `json:"provider"`
	ExternalUserID string           `json:"external_user_id"`
	UserID         string           `json:"user_id"`
	CreatedAt      time.Time        `json:"created_at"`
}

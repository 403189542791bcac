package request

// CreateAPIKey describes a key to mint. Empty scopes or tenants mean full
// access on that axis.
type CreateAPIKey struct {
	Name    string   `json:"name" validate:"required,max=255"`
	Scopes  []string `json:"scopes" validate:"omitempty,dive,api_scope"`
	Tenants []string `json:"tenants" validate:"omitempty,dive,required"`
}

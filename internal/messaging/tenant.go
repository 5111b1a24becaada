package messaging

import "strings"

// TenantResolver maps a transport channel id (the Cloud API phone_number_id)
// to a tenant. Unknown channels belong to the default tenant.
type TenantResolver struct {
	defaultID int64
	routes    map[string]int64
}

func NewTenantResolver(defaultID int64, routes map[string]int64) *TenantResolver {
	clean := make(map[string]int64, len(routes))
	for channel, tenant := range routes {
		channel = strings.TrimSpace(channel)
		if channel == "" || tenant <= 0 {
			continue
		}
		clean[channel] = tenant
	}
	return &TenantResolver{defaultID: defaultID, routes: clean}
}

func (r *TenantResolver) Resolve(channelID string) int64 {
	if r == nil {
		return 0
	}
	if id, ok := r.routes[strings.TrimSpace(channelID)]; ok {
		return id
	}
	return r.defaultID
}

// Tenants lists every routed tenant including the default.
func (r *TenantResolver) Tenants() []int64 {
	seen := map[int64]bool{r.defaultID: true}
	ids := []int64{r.defaultID}
	for _, id := range r.routes {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

package lib

// TenantClaimSystem is the security label system URI that carries the
// owning tenant of a FHIR resource
const TenantClaimSystem = "http://thirdopinion.io/identity/claims/tenant"

// UnknownTenant is the sentinel tenant for resources without a usable
// tenant security label. Records tagged with it stay queryable under
// their own partition instead of being dropped.
const UnknownTenant = "unknown"

// ExtractTenantID returns the tenant identifier from a resource's
// meta.security labels. The first label whose system matches
// TenantClaimSystem wins. Any structural surprise (missing meta,
// security not a list, non-object labels, missing or non-string code)
// yields UnknownTenant. Never panics, never returns an error.
func ExtractTenantID(resource FHIRResource) string {
	if resource == nil {
		return UnknownTenant
	}

	meta, ok := resource["meta"].(map[string]interface{})
	if !ok {
		return UnknownTenant
	}

	security, ok := meta["security"].([]interface{})
	if !ok {
		return UnknownTenant
	}

	for _, entry := range security {
		label, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		system, ok := label["system"].(string)
		if !ok || system != TenantClaimSystem {
			continue
		}

		// First matching label wins, even when its code is unusable
		code, ok := label["code"].(string)
		if !ok || code == "" {
			return UnknownTenant
		}
		return code
	}

	return UnknownTenant
}

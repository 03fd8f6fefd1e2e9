package tenant

// PrefixKey namespaces a cache or limiter key by tenant id. An empty tenant leaves the key untouched.
func PrefixKey(tenantID, key string) string {
	if tenantID == "" {
		return key
	}
	return tenantID + ":" + key
}

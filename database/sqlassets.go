package sqlassets

import _ "embed"

//go:embed schema/tenants.sql
var TenantsSQL string

//go:embed schema/profiles.sql
var ProfilesSQL string

//go:embed schema/tenant_features.sql
var FeaturesSQL string

//go:embed schema/domains.sql
var DomainsSQL string

//go:embed schema/whitelabel_configs.sql
var BrandingSQL string

//go:embed schema/auth_identities.sql
var AuthIdentitiesSQL string

//go:embed schema/user_count_functions.sql
var UserCountFunctionsSQL string

// Ordered lists the DDL files in the order they must be applied.
func Ordered() []string {
	return []string{
		TenantsSQL,
		ProfilesSQL,
		FeaturesSQL,
		DomainsSQL,
		BrandingSQL,
		AuthIdentitiesSQL,
		UserCountFunctionsSQL,
	}
}

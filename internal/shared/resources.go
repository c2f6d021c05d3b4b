package shared

// Resource slugs gated by the permission resolver. The slugs mirror the
// system_features table seeded by the platform; Portuguese names are kept
// because they are the stable identifiers the frontend already ships with.
const (
	ResourceImoveis        = "imoveis"
	ResourceUsers          = "usuarios"
	ResourceRoles          = "roles"
	ResourcePermissions    = "permissions"
	ResourceSystemFeatures = "system-features"
	ResourceRelatorios     = "relatorios"
	ResourceAuditLogs      = "audit-logs"
	ResourceProximidades   = "proximidades"
	ResourceAmenidades     = "amenidades"
)

// SuperAdminRole is the distinguished role name that bypasses permission
// lookups entirely.
const SuperAdminRole = "Super Admin"

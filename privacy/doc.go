// Package privacy decides which tables and columns a caller may read or
// write while a query is compiled.
//
// The compiler's validator asks a Permissions source for the access mode of
// every table and column a query references. A Full mode allows writing and
// reading, ReadOnly allows reading, None denies both.
//
// # Static grants
//
// Grants is a static permission table, usually loaded from YAML:
//
//	default: read-only
//	tables:
//	  Docs:
//	    mode: full
//	    columns:
//	      Secret: none
//
// # Policies
//
// A Policy is an ordered list of rules. Rules return decisions:
//
//   - Allow: grants Full access and stops evaluation
//   - AllowRead: grants ReadOnly access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// Policies are bound to a request context to become a Permissions source:
//
//	policy := privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.OnColumn("Docs", "Secret", privacy.HasRoleRead("auditor")),
//	    privacy.HasRole("admin"),
//	    privacy.PermissionsRule(grants),
//	}
//	perms := policy.Permissions(privacy.WithViewer(ctx, viewer))
package privacy

// ABOUTME: Deterministic webhook registration name derivation
// ABOUTME: Pure function of the tenant scope, tested without any network

package webhook

import (
	"strings"

	"github.com/greentic/messaging-gateway/internal/envelope"
)

// DefaultNamePrefix is the prefix for registration names when the
// operator does not override it.
const DefaultNamePrefix = "greentic"

// DesiredName derives the registration name for a provider within a
// tenant scope: "<prefix>:<env>:<tenant>:<team>:<provider>". When any of
// env/tenant/team is absent the name falls back to "<prefix>:<provider>".
func DesiredName(prefix string, scope envelope.TenantCtx, provider string) string {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	env := strings.TrimSpace(scope.Env)
	tenant := strings.TrimSpace(scope.Tenant)
	team := strings.TrimSpace(scope.Team)
	if env == "" || tenant == "" || team == "" {
		return prefix + ":" + provider
	}
	return strings.Join([]string{prefix, env, tenant, team, provider}, ":")
}

package validation

import (
	"fmt"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Descriptor Validation Functions
// =============================================================================

var (
	auditModes       = []string{"JPA", "JMS", "NONE"}
	persistenceModes = []string{"JPA", "NONE"}
)

// ValidateDescriptor validates a deployment descriptor.
// Returns the offending field and an error message if validation fails.
// Returns empty strings for a valid or nil descriptor.
//
// Example:
//
//	field, msg := ValidateDescriptor(&domain.DeploymentDescriptor{AuditMode: "FILE"})
//	// field == "audit_mode"
func ValidateDescriptor(d *domain.DeploymentDescriptor) (field, message string) {
	if d == nil {
		return "", ""
	}

	if d.AuditMode != "" && !oneOf(d.AuditMode, auditModes) {
		return "audit_mode", fmt.Sprintf("audit_mode must be one of %v", auditModes)
	}
	if d.PersistenceMode != "" && !oneOf(d.PersistenceMode, persistenceModes) {
		return "persistence_mode", fmt.Sprintf("persistence_mode must be one of %v", persistenceModes)
	}
	if d.RuntimeStrategy != "" {
		if _, err := domain.ParseRuntimeStrategy(d.RuntimeStrategy); err != nil {
			return "runtime_strategy", err.Error()
		}
	}

	for _, list := range []struct {
		field  string
		models []domain.ObjectModel
	}{
		{"marshalling_strategies", d.MarshallingStrategies},
		{"event_listeners", d.EventListeners},
		{"task_event_listeners", d.TaskEventListeners},
	} {
		for i, m := range list.models {
			if m.Identifier == "" {
				return fmt.Sprintf("%s[%d].identifier", list.field, i), "identifier is required"
			}
		}
	}

	for _, list := range []struct {
		field  string
		models []domain.NamedObjectModel
	}{
		{"globals", d.Globals},
		{"work_item_handlers", d.WorkItemHandlers},
		{"environment_entries", d.EnvironmentEntries},
		{"configuration", d.Configuration},
	} {
		if field, msg := validateNamed(list.field, list.models); field != "" {
			return field, msg
		}
	}

	for i, role := range d.RequiredRoles {
		if role == "" {
			return fmt.Sprintf("required_roles[%d]", i), "role must not be empty"
		}
	}

	return "", ""
}

// validateNamed requires a name and identifier on every entry, with names
// unique within the list.
func validateNamed(field string, models []domain.NamedObjectModel) (string, string) {
	seen := make(map[string]bool, len(models))
	for i, m := range models {
		if m.Name == "" {
			return fmt.Sprintf("%s[%d].name", field, i), "name is required"
		}
		if m.Identifier == "" {
			return fmt.Sprintf("%s[%d].identifier", field, i), "identifier is required"
		}
		if seen[m.Name] {
			return fmt.Sprintf("%s[%d].name", field, i), fmt.Sprintf("duplicate name %q", m.Name)
		}
		seen[m.Name] = true
	}
	return "", ""
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

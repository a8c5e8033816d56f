package domain

// =============================================================================
// Deployment Descriptor
// =============================================================================

// ObjectModel describes how to build a runtime object (listener, strategy, handler).
type ObjectModel struct {
	Resolver   string   `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	Identifier string   `json:"identifier" yaml:"identifier"`
	Parameters []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// NamedObjectModel is an ObjectModel registered under a name.
type NamedObjectModel struct {
	ObjectModel `yaml:",inline"`
	Name        string `json:"name" yaml:"name"`
}

// DeploymentDescriptor is deployment-time configuration supplied by the caller.
// The orchestrator treats it as opaque: it is copied into the job and handed to
// the loader unchanged.
type DeploymentDescriptor struct {
	PersistenceUnit       string             `json:"persistence_unit,omitempty" yaml:"persistence_unit,omitempty"`
	AuditPersistenceUnit  string             `json:"audit_persistence_unit,omitempty" yaml:"audit_persistence_unit,omitempty"`
	AuditMode             string             `json:"audit_mode,omitempty" yaml:"audit_mode,omitempty"`
	PersistenceMode       string             `json:"persistence_mode,omitempty" yaml:"persistence_mode,omitempty"`
	RuntimeStrategy       string             `json:"runtime_strategy,omitempty" yaml:"runtime_strategy,omitempty"`
	MarshallingStrategies []ObjectModel      `json:"marshalling_strategies,omitempty" yaml:"marshalling_strategies,omitempty"`
	EventListeners        []ObjectModel      `json:"event_listeners,omitempty" yaml:"event_listeners,omitempty"`
	TaskEventListeners    []ObjectModel      `json:"task_event_listeners,omitempty" yaml:"task_event_listeners,omitempty"`
	Globals               []NamedObjectModel `json:"globals,omitempty" yaml:"globals,omitempty"`
	WorkItemHandlers      []NamedObjectModel `json:"work_item_handlers,omitempty" yaml:"work_item_handlers,omitempty"`
	EnvironmentEntries    []NamedObjectModel `json:"environment_entries,omitempty" yaml:"environment_entries,omitempty"`
	Configuration         []NamedObjectModel `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	RequiredRoles         []string           `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`
	Classes               []string           `json:"classes,omitempty" yaml:"classes,omitempty"`
}

// Clone returns a deep copy. A nil descriptor clones to nil.
func (d *DeploymentDescriptor) Clone() *DeploymentDescriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.MarshallingStrategies = cloneObjectModels(d.MarshallingStrategies)
	c.EventListeners = cloneObjectModels(d.EventListeners)
	c.TaskEventListeners = cloneObjectModels(d.TaskEventListeners)
	c.Globals = cloneNamedObjectModels(d.Globals)
	c.WorkItemHandlers = cloneNamedObjectModels(d.WorkItemHandlers)
	c.EnvironmentEntries = cloneNamedObjectModels(d.EnvironmentEntries)
	c.Configuration = cloneNamedObjectModels(d.Configuration)
	c.RequiredRoles = cloneStrings(d.RequiredRoles)
	c.Classes = cloneStrings(d.Classes)
	return &c
}

func cloneObjectModels(in []ObjectModel) []ObjectModel {
	if in == nil {
		return nil
	}
	out := make([]ObjectModel, len(in))
	for i, m := range in {
		m.Parameters = cloneStrings(m.Parameters)
		out[i] = m
	}
	return out
}

func cloneNamedObjectModels(in []NamedObjectModel) []NamedObjectModel {
	if in == nil {
		return nil
	}
	out := make([]NamedObjectModel, len(in))
	for i, m := range in {
		m.Parameters = cloneStrings(m.Parameters)
		out[i] = m
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

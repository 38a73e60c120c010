// Package engine executes parsed task documents: it resolves every processing
// step's argument bindings against the metadata store, builds a fresh
// data-access facade per step and runs the steps strictly in document order.
// Tasks are never mutated; resolution works on copies.
package engine

import (
	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/task"
)

const moduleName = "engine"

// ResolvedStep carries one step's arguments after metadata resolution.
type ResolvedStep struct {
	Step    *task.ProcessingStep
	Inputs  []access.Argument
	Outputs []access.Argument
}

// ResolveStep resolves every input and output binding of one step. The task
// is read, never written: inherited declarations are materialized as copies.
// A binding referencing a declaration that exists nowhere in the task is
// fatal, named by step and argument.
func ResolveStep(t *task.Task, step *task.ProcessingStep) (*ResolvedStep, error) {
	resolved := &ResolvedStep{Step: step}

	inputs, err := resolveBindings(t, step, step.Inputs)
	if err != nil {
		return nil, err
	}
	resolved.Inputs = inputs

	outputs, err := resolveBindings(t, step, step.Outputs)
	if err != nil {
		return nil, err
	}
	resolved.Outputs = outputs
	return resolved, nil
}

func resolveBindings(t *task.Task, step *task.ProcessingStep, bindings []task.Binding) ([]access.Argument, error) {
	if len(bindings) == 0 {
		return nil, nil
	}
	args := make([]access.Argument, 0, len(bindings))
	for _, binding := range bindings {
		localUID := binding.UID
		if localUID == "" {
			localUID = binding.DataRef
		}
		info, err := resolveBinding(t, step, binding)
		if err != nil {
			return nil, err
		}
		args = append(args, access.Argument{LocalUID: localUID, Info: info})
	}
	return args, nil
}

func resolveBinding(t *task.Task, step *task.ProcessingStep, binding task.Binding) (*mddb.ArgumentInfo, error) {
	if decl := t.FindData(binding.DataRef); decl != nil {
		effective, err := materializeDeclaration(t, decl)
		if err != nil {
			return nil, err
		}
		info, err := mddb.Resolve(t.Metadb, effective)
		if err != nil {
			return nil, err
		}
		applyDeclaredDescription(t, effective, info)
		return info, nil
	}
	if decl := t.FindDestination(binding.DataRef); decl != nil {
		info := mddb.ResolveDestination(decl)
		applyDestinationDescription(t, decl, info)
		return info, nil
	}
	return nil, exception.NewCoreErrorf(moduleName,
		"processing step '%s': argument '%s' references unknown declaration '%s'",
		step.UID, binding.UID, binding.DataRef)
}

// materializeDeclaration returns a copy of the declaration with inherited
// elements filled in from its parent chain. A child only inherits what it
// does not declare itself; a product attribute derives the variable name from
// the parent's by suffixing.
func materializeDeclaration(t *task.Task, decl *task.DataDeclaration) (*task.DataDeclaration, error) {
	effective := *decl
	seen := map[string]bool{decl.UID: true}
	parentUID := decl.Parent
	for parentUID != "" {
		if seen[parentUID] {
			return nil, exception.NewCoreErrorf(moduleName,
				"declaration '%s' has a circular parent chain", decl.UID)
		}
		seen[parentUID] = true
		parent := t.FindData(parentUID)
		if parent == nil {
			return nil, exception.NewCoreErrorf(moduleName,
				"declaration '%s' names unknown parent '%s'", decl.UID, parentUID)
		}
		inheritFrom(&effective, parent)
		parentUID = parent.Parent
	}
	if effective.Product != "" && effective.Variable != nil {
		derived := *effective.Variable
		derived.Name = derived.Name + "_" + effective.Product
		effective.Variable = &derived
	}
	return &effective, nil
}

func inheritFrom(child, parent *task.DataDeclaration) {
	if child.Type == "" {
		child.Type = parent.Type
	}
	if child.Dataset == nil {
		child.Dataset = parent.Dataset
	}
	if child.Variable == nil {
		child.Variable = parent.Variable
	}
	if child.Region == nil {
		child.Region = parent.Region
	}
	if child.Levels == nil {
		child.Levels = parent.Levels
	}
	if child.Time == nil {
		child.Time = parent.Time
	}
	if child.Description == nil {
		child.Description = parent.Description
	}
	if child.File == nil {
		child.File = parent.File
	}
}

// applyDeclaredDescription overlays a declaration's own description onto the
// resolved one. Dataset descriptions from the metadata store win unless the
// task declares explicit values.
func applyDeclaredDescription(t *task.Task, decl *task.DataDeclaration, info *mddb.ArgumentInfo) {
	desc := resolveDescriptionSource(t, decl.Description)
	if desc == nil {
		return
	}
	if desc.Title != "" {
		info.Description.Title = desc.Title
	}
	if desc.Name != "" {
		info.Description.Name = desc.Name
	}
	if desc.Units != "" {
		info.Description.Units = desc.Units
	}
}

// applyDestinationDescription fills a destination's description, following a
// source attribute to the data declaration it borrows name and units from.
func applyDestinationDescription(t *task.Task, decl *task.DestinationDeclaration, info *mddb.ArgumentInfo) {
	desc := resolveDescriptionSource(t, decl.Desc)
	if desc == nil {
		return
	}
	info.Description = mddb.Description{
		Title: desc.Title,
		Name:  desc.Name,
		Units: desc.Units,
	}
}

// resolveDescriptionSource follows the description's source attribute to the
// named data declaration, taking its name and units while keeping the local
// title.
func resolveDescriptionSource(t *task.Task, desc *task.Description) *task.Description {
	if desc == nil || desc.Source == "" {
		return desc
	}
	source := t.FindData(desc.Source)
	if source == nil || source.Description == nil {
		return desc
	}
	merged := *desc
	if merged.Name == "" {
		merged.Name = source.Description.Name
	}
	if merged.Units == "" {
		merged.Units = source.Description.Units
	}
	return &merged
}

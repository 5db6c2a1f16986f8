// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"fmt"
	"sort"
	"time"

	apperrors "agentbridge/internal/errors"
)

// Operation is one statically declared tool operation.
type Operation struct {
	Name        string
	Description string
	// CLI names the registry entry whose executable runs this operation.
	// Maintenance operations leave it empty and are served in-process.
	CLI    string
	Fields []Field
	Rules  ValidationRule
	// Timeout is the catalog default; TimeoutArg, when set, names an
	// integer argument in seconds that replaces it.
	Timeout    time.Duration
	TimeoutArg string
	// DirArg names the path argument used as the child's working directory.
	DirArg string
	// Env holds fixed variables set on every run of this operation.
	Env map[string]string
	// Build maps validated arguments to the CLI's argument vector.
	Build func(Args) ([]string, error)
	// Parse, when set, turns stdout into structured data.
	Parse func(stdout string) (map[string]any, error)
}

// Maintenance reports whether the operation runs without a single CLI.
func (op *Operation) Maintenance() bool {
	return op.CLI == ""
}

// Validate checks raw arguments against the schema and the cross-field rules.
func (op *Operation) Validate(raw map[string]any) (Args, error) {
	args, err := ValidateArgs(op.Fields, raw)
	if err != nil {
		return nil, err
	}
	if op.Rules != nil {
		if err := op.Rules(args); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// TimeoutFor resolves the run timeout for validated args.
func (op *Operation) TimeoutFor(args Args, cfg TimeoutConfig) time.Duration {
	if op.TimeoutArg != "" && args.Has(op.TimeoutArg) {
		if seconds := args.Int(op.TimeoutArg); seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return cfg.TimeoutFor(op.Name, op.Timeout)
}

// Field returns the declared field called name.
func (op *Operation) Field(name string) (Field, bool) {
	for _, f := range op.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Options parameterize the catalog with configured defaults.
type Options struct {
	// DefaultModels maps a CLI name to the model used when none is given.
	DefaultModels map[string]string
	// Allow, when non-empty, enables only the named operations. Deny
	// disables operations and wins over Allow.
	Allow []string
	Deny  []string
}

// Catalog is the read-only set of operations.
type Catalog struct {
	ops      map[string]*Operation
	order    []string
	disabled map[string]bool
}

// NewCatalog builds the built-in operations.
func NewCatalog(opts Options) (*Catalog, error) {
	c := &Catalog{ops: make(map[string]*Operation), disabled: make(map[string]bool)}
	for _, op := range builtinOperations(opts) {
		if err := c.register(op); err != nil {
			return nil, err
		}
	}
	if len(opts.Allow) > 0 {
		allowed := make(map[string]bool, len(opts.Allow))
		for _, name := range opts.Allow {
			allowed[name] = true
		}
		for _, name := range c.order {
			if !allowed[name] {
				c.disabled[name] = true
			}
		}
	}
	for _, name := range opts.Deny {
		c.disabled[name] = true
	}
	return c, nil
}

func (c *Catalog) register(op *Operation) error {
	if op.Name == "" {
		return fmt.Errorf("operation without a name")
	}
	if _, exists := c.ops[op.Name]; exists {
		return fmt.Errorf("duplicate operation %q", op.Name)
	}
	if !op.Maintenance() && op.Build == nil {
		return fmt.Errorf("operation %q has no argument template", op.Name)
	}
	if op.DirArg != "" {
		if f, ok := op.Field(op.DirArg); !ok || f.Kind != KindPath {
			return fmt.Errorf("operation %q: working directory argument %q must be a path field", op.Name, op.DirArg)
		}
	}
	c.ops[op.Name] = op
	c.order = append(c.order, op.Name)
	return nil
}

// Lookup returns the operation called name.
func (c *Catalog) Lookup(name string) (*Operation, error) {
	op, ok := c.ops[name]
	if !ok {
		return nil, NewUnknownToolError(name)
	}
	if c.disabled[name] {
		return nil, apperrors.Wrap(apperrors.CodeUnknownTool, fmt.Sprintf("tool %q is disabled", name), ErrToolNotFound)
	}
	return op, nil
}

// Operations returns the enabled operations in declaration order.
func (c *Catalog) Operations() []*Operation {
	out := make([]*Operation, 0, len(c.order))
	for _, name := range c.order {
		if !c.disabled[name] {
			out = append(out, c.ops[name])
		}
	}
	return out
}

// Names returns the sorted names of enabled operations.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.order))
	for _, name := range c.order {
		if !c.disabled[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllNames returns every registered operation name, enabled or not.
func (c *Catalog) AllNames() []string {
	names := append([]string{}, c.order...)
	sort.Strings(names)
	return names
}

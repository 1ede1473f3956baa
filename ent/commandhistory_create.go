// Code generated by ent, DO NOT EDIT.

package ent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql/sqlgraph"
	"entgo.io/ent/schema/field"
	"github.com/bastionmud/bastion/ent/commandhistory"
)

// CommandHistoryCreate is the builder for creating a CommandHistory entity.
type CommandHistoryCreate struct {
	config
	mutation *CommandHistoryMutation
	hooks    []Hook
}

// SetCommand sets the "command" field.
func (_c *CommandHistoryCreate) SetCommand(v string) *CommandHistoryCreate {
	_c.mutation.SetCommand(v)
	return _c
}

// SetCreatedAt sets the "created_at" field.
func (_c *CommandHistoryCreate) SetCreatedAt(v time.Time) *CommandHistoryCreate {
	_c.mutation.SetCreatedAt(v)
	return _c
}

// SetNillableCreatedAt sets the "created_at" field if the given value is not nil.
func (_c *CommandHistoryCreate) SetNillableCreatedAt(v *time.Time) *CommandHistoryCreate {
	if v != nil {
		_c.SetCreatedAt(*v)
	}
	return _c
}

// Mutation returns the CommandHistoryMutation object of the builder.
func (_c *CommandHistoryCreate) Mutation() *CommandHistoryMutation {
	return _c.mutation
}

// Save creates the CommandHistory in the database.
func (_c *CommandHistoryCreate) Save(ctx context.Context) (*CommandHistory, error) {
	_c.defaults()
	return withHooks(ctx, _c.sqlSave, _c.mutation, _c.hooks)
}

// SaveX calls Save and panics if Save returns an error.
func (_c *CommandHistoryCreate) SaveX(ctx context.Context) *CommandHistory {
	v, err := _c.Save(ctx)
	if err != nil {
		panic(err)
	}
	return v
}

// Exec executes the query.
func (_c *CommandHistoryCreate) Exec(ctx context.Context) error {
	_, err := _c.Save(ctx)
	return err
}

// ExecX is like Exec, but panics if an error occurs.
func (_c *CommandHistoryCreate) ExecX(ctx context.Context) {
	if err := _c.Exec(ctx); err != nil {
		panic(err)
	}
}

// defaults sets the default values of the builder before save.
func (_c *CommandHistoryCreate) defaults() {
	if _, ok := _c.mutation.CreatedAt(); !ok {
		v := commandhistory.DefaultCreatedAt()
		_c.mutation.SetCreatedAt(v)
	}
}

// check runs all checks and user-defined validators on the builder.
func (_c *CommandHistoryCreate) check() error {
	if _, ok := _c.mutation.Command(); !ok {
		return &ValidationError{Name: "command", err: errors.New(`ent: missing required field "CommandHistory.command"`)}
	}
	if _, ok := _c.mutation.CreatedAt(); !ok {
		return &ValidationError{Name: "created_at", err: errors.New(`ent: missing required field "CommandHistory.created_at"`)}
	}
	return nil
}

func (_c *CommandHistoryCreate) sqlSave(ctx context.Context) (*CommandHistory, error) {
	if err := _c.check(); err != nil {
		return nil, err
	}
	_node, _spec := _c.createSpec()
	if err := sqlgraph.CreateNode(ctx, _c.driver, _spec); err != nil {
		if sqlgraph.IsConstraintError(err) {
			err = &ConstraintError{msg: err.Error(), wrap: err}
		}
		return nil, err
	}
	id := _spec.ID.Value.(int64)
	_node.ID = int(id)
	_c.mutation.id = &_node.ID
	_c.mutation.done = true
	return _node, nil
}

func (_c *CommandHistoryCreate) createSpec() (*CommandHistory, *sqlgraph.CreateSpec) {
	var (
		_node = &CommandHistory{config: _c.config}
		_spec = sqlgraph.NewCreateSpec(commandhistory.Table, sqlgraph.NewFieldSpec(commandhistory.FieldID, field.TypeInt))
	)
	if value, ok := _c.mutation.Command(); ok {
		_spec.SetField(commandhistory.FieldCommand, field.TypeString, value)
		_node.Command = value
	}
	if value, ok := _c.mutation.CreatedAt(); ok {
		_spec.SetField(commandhistory.FieldCreatedAt, field.TypeTime, value)
		_node.CreatedAt = value
	}
	return _node, _spec
}

// CommandHistoryCreateBulk is the builder for creating many CommandHistory entities in bulk.
type CommandHistoryCreateBulk struct {
	config
	err      error
	builders []*CommandHistoryCreate
}

// Save creates the CommandHistory entities in the database.
func (_c *CommandHistoryCreateBulk) Save(ctx context.Context) ([]*CommandHistory, error) {
	if _c.err != nil {
		return nil, _c.err
	}
	specs := make([]*sqlgraph.CreateSpec, len(_c.builders))
	nodes := make([]*CommandHistory, len(_c.builders))
	mutators := make([]Mutator, len(_c.builders))
	for i := range _c.builders {
		func(i int, root context.Context) {
			builder := _c.builders[i]
			builder.defaults()
			var mut Mutator = MutateFunc(func(ctx context.Context, m Mutation) (Value, error) {
				mutation, ok := m.(*CommandHistoryMutation)
				if !ok {
					return nil, fmt.Errorf("unexpected mutation type %T", m)
				}
				if err := builder.check(); err != nil {
					return nil, err
				}
				builder.mutation = mutation
				var err error
				nodes[i], specs[i] = builder.createSpec()
				if i < len(mutators)-1 {
					_, err = mutators[i+1].Mutate(root, _c.builders[i+1].mutation)
				} else {
					spec := &sqlgraph.BatchCreateSpec{Nodes: specs}
					// Invoke the actual operation on the latest mutation in the chain.
					if err = sqlgraph.BatchCreate(ctx, _c.driver, spec); err != nil {
						if sqlgraph.IsConstraintError(err) {
							err = &ConstraintError{msg: err.Error(), wrap: err}
						}
					}
				}
				if err != nil {
					return nil, err
				}
				mutation.id = &nodes[i].ID
				if specs[i].ID.Value != nil {
					id := specs[i].ID.Value.(int64)
					nodes[i].ID = int(id)
				}
				mutation.done = true
				return nodes[i], nil
			})
			for i := len(builder.hooks) - 1; i >= 0; i-- {
				mut = builder.hooks[i](mut)
			}
			mutators[i] = mut
		}(i, ctx)
	}
	if len(mutators) > 0 {
		if _, err := mutators[0].Mutate(ctx, _c.builders[0].mutation); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// SaveX is like Save, but panics if an error occurs.
func (_c *CommandHistoryCreateBulk) SaveX(ctx context.Context) []*CommandHistory {
	v, err := _c.Save(ctx)
	if err != nil {
		panic(err)
	}
	return v
}

// Exec executes the query.
func (_c *CommandHistoryCreateBulk) Exec(ctx context.Context) error {
	_, err := _c.Save(ctx)
	return err
}

// ExecX is like Exec, but panics if an error occurs.
func (_c *CommandHistoryCreateBulk) ExecX(ctx context.Context) {
	if err := _c.Exec(ctx); err != nil {
		panic(err)
	}
}

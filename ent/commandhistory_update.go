// Code generated by ent, DO NOT EDIT.

package ent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"entgo.io/ent/schema/field"
	"github.com/bastionmud/bastion/ent/commandhistory"
	"github.com/bastionmud/bastion/ent/predicate"
)

// CommandHistoryUpdate is the builder for updating CommandHistory entities.
type CommandHistoryUpdate struct {
	config
	hooks    []Hook
	mutation *CommandHistoryMutation
}

// Where appends a list predicates to the CommandHistoryUpdate builder.
func (_u *CommandHistoryUpdate) Where(ps ...predicate.CommandHistory) *CommandHistoryUpdate {
	_u.mutation.Where(ps...)
	return _u
}

// SetCommand sets the "command" field.
func (_u *CommandHistoryUpdate) SetCommand(v string) *CommandHistoryUpdate {
	_u.mutation.SetCommand(v)
	return _u
}

// SetNillableCommand sets the "command" field if the given value is not nil.
func (_u *CommandHistoryUpdate) SetNillableCommand(v *string) *CommandHistoryUpdate {
	if v != nil {
		_u.SetCommand(*v)
	}
	return _u
}

// SetCreatedAt sets the "created_at" field.
func (_u *CommandHistoryUpdate) SetCreatedAt(v time.Time) *CommandHistoryUpdate {
	_u.mutation.SetCreatedAt(v)
	return _u
}

// SetNillableCreatedAt sets the "created_at" field if the given value is not nil.
func (_u *CommandHistoryUpdate) SetNillableCreatedAt(v *time.Time) *CommandHistoryUpdate {
	if v != nil {
		_u.SetCreatedAt(*v)
	}
	return _u
}

// Mutation returns the CommandHistoryMutation object of the builder.
func (_u *CommandHistoryUpdate) Mutation() *CommandHistoryMutation {
	return _u.mutation
}

// Save executes the query and returns the number of nodes affected by the update operation.
func (_u *CommandHistoryUpdate) Save(ctx context.Context) (int, error) {
	return withHooks(ctx, _u.sqlSave, _u.mutation, _u.hooks)
}

// SaveX is like Save, but panics if an error occurs.
func (_u *CommandHistoryUpdate) SaveX(ctx context.Context) int {
	affected, err := _u.Save(ctx)
	if err != nil {
		panic(err)
	}
	return affected
}

// Exec executes the query.
func (_u *CommandHistoryUpdate) Exec(ctx context.Context) error {
	_, err := _u.Save(ctx)
	return err
}

// ExecX is like Exec, but panics if an error occurs.
func (_u *CommandHistoryUpdate) ExecX(ctx context.Context) {
	if err := _u.Exec(ctx); err != nil {
		panic(err)
	}
}

func (_u *CommandHistoryUpdate) sqlSave(ctx context.Context) (_node int, err error) {
	_spec := sqlgraph.NewUpdateSpec(commandhistory.Table, commandhistory.Columns, sqlgraph.NewFieldSpec(commandhistory.FieldID, field.TypeInt))
	if ps := _u.mutation.predicates; len(ps) > 0 {
		_spec.Predicate = func(selector *sql.Selector) {
			for i := range ps {
				ps[i](selector)
			}
		}
	}
	if value, ok := _u.mutation.Command(); ok {
		_spec.SetField(commandhistory.FieldCommand, field.TypeString, value)
	}
	if value, ok := _u.mutation.CreatedAt(); ok {
		_spec.SetField(commandhistory.FieldCreatedAt, field.TypeTime, value)
	}
	if _node, err = sqlgraph.UpdateNodes(ctx, _u.driver, _spec); err != nil {
		if _, ok := err.(*sqlgraph.NotFoundError); ok {
			err = &NotFoundError{commandhistory.Label}
		} else if sqlgraph.IsConstraintError(err) {
			err = &ConstraintError{msg: err.Error(), wrap: err}
		}
		return 0, err
	}
	_u.mutation.done = true
	return _node, nil
}

// CommandHistoryUpdateOne is the builder for updating a single CommandHistory entity.
type CommandHistoryUpdateOne struct {
	config
	fields   []string
	hooks    []Hook
	mutation *CommandHistoryMutation
}

// SetCommand sets the "command" field.
func (_u *CommandHistoryUpdateOne) SetCommand(v string) *CommandHistoryUpdateOne {
	_u.mutation.SetCommand(v)
	return _u
}

// SetNillableCommand sets the "command" field if the given value is not nil.
func (_u *CommandHistoryUpdateOne) SetNillableCommand(v *string) *CommandHistoryUpdateOne {
	if v != nil {
		_u.SetCommand(*v)
	}
	return _u
}

// SetCreatedAt sets the "created_at" field.
func (_u *CommandHistoryUpdateOne) SetCreatedAt(v time.Time) *CommandHistoryUpdateOne {
	_u.mutation.SetCreatedAt(v)
	return _u
}

// SetNillableCreatedAt sets the "created_at" field if the given value is not nil.
func (_u *CommandHistoryUpdateOne) SetNillableCreatedAt(v *time.Time) *CommandHistoryUpdateOne {
	if v != nil {
		_u.SetCreatedAt(*v)
	}
	return _u
}

// Mutation returns the CommandHistoryMutation object of the builder.
func (_u *CommandHistoryUpdateOne) Mutation() *CommandHistoryMutation {
	return _u.mutation
}

// Where appends a list predicates to the CommandHistoryUpdate builder.
func (_u *CommandHistoryUpdateOne) Where(ps ...predicate.CommandHistory) *CommandHistoryUpdateOne {
	_u.mutation.Where(ps...)
	return _u
}

// Select allows selecting one or more fields (columns) of the returned entity.
// The default is selecting all fields defined in the entity schema.
func (_u *CommandHistoryUpdateOne) Select(field string, fields ...string) *CommandHistoryUpdateOne {
	_u.fields = append([]string{field}, fields...)
	return _u
}

// Save executes the query and returns the updated CommandHistory entity.
func (_u *CommandHistoryUpdateOne) Save(ctx context.Context) (*CommandHistory, error) {
	return withHooks(ctx, _u.sqlSave, _u.mutation, _u.hooks)
}

// SaveX is like Save, but panics if an error occurs.
func (_u *CommandHistoryUpdateOne) SaveX(ctx context.Context) *CommandHistory {
	node, err := _u.Save(ctx)
	if err != nil {
		panic(err)
	}
	return node
}

// Exec executes the query on the entity.
func (_u *CommandHistoryUpdateOne) Exec(ctx context.Context) error {
	_, err := _u.Save(ctx)
	return err
}

// ExecX is like Exec, but panics if an error occurs.
func (_u *CommandHistoryUpdateOne) ExecX(ctx context.Context) {
	if err := _u.Exec(ctx); err != nil {
		panic(err)
	}
}

func (_u *CommandHistoryUpdateOne) sqlSave(ctx context.Context) (_node *CommandHistory, err error) {
	_spec := sqlgraph.NewUpdateSpec(commandhistory.Table, commandhistory.Columns, sqlgraph.NewFieldSpec(commandhistory.FieldID, field.TypeInt))
	id, ok := _u.mutation.ID()
	if !ok {
		return nil, &ValidationError{Name: "id", err: errors.New(`ent: missing "CommandHistory.id" for update`)}
	}
	_spec.Node.ID.Value = id
	if fields := _u.fields; len(fields) > 0 {
		_spec.Node.Columns = make([]string, 0, len(fields))
		_spec.Node.Columns = append(_spec.Node.Columns, commandhistory.FieldID)
		for _, f := range fields {
			if !commandhistory.ValidColumn(f) {
				return nil, &ValidationError{Name: f, err: fmt.Errorf("ent: invalid field %q for query", f)}
			}
			if f != commandhistory.FieldID {
				_spec.Node.Columns = append(_spec.Node.Columns, f)
			}
		}
	}
	if ps := _u.mutation.predicates; len(ps) > 0 {
		_spec.Predicate = func(selector *sql.Selector) {
			for i := range ps {
				ps[i](selector)
			}
		}
	}
	if value, ok := _u.mutation.Command(); ok {
		_spec.SetField(commandhistory.FieldCommand, field.TypeString, value)
	}
	if value, ok := _u.mutation.CreatedAt(); ok {
		_spec.SetField(commandhistory.FieldCreatedAt, field.TypeTime, value)
	}
	_node = &CommandHistory{config: _u.config}
	_spec.Assign = _node.assignValues
	_spec.ScanValues = _node.scanValues
	if err = sqlgraph.UpdateNode(ctx, _u.driver, _spec); err != nil {
		if _, ok := err.(*sqlgraph.NotFoundError); ok {
			err = &NotFoundError{commandhistory.Label}
		} else if sqlgraph.IsConstraintError(err) {
			err = &ConstraintError{msg: err.Error(), wrap: err}
		}
		return nil, err
	}
	_u.mutation.done = true
	return _node, nil
}

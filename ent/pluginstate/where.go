// Code generated by ent, DO NOT EDIT.

package pluginstate

import (
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/bastionmud/bastion/ent/predicate"
)

// ID filters vertices based on their ID field.
func ID(id int) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldID, id))
}

// IDEQ applies the EQ predicate on the ID field.
func IDEQ(id int) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldID, id))
}

// IDNEQ applies the NEQ predicate on the ID field.
func IDNEQ(id int) predicate.PluginState {
	return predicate.PluginState(sql.FieldNEQ(FieldID, id))
}

// IDIn applies the In predicate on the ID field.
func IDIn(ids ...int) predicate.PluginState {
	return predicate.PluginState(sql.FieldIn(FieldID, ids...))
}

// IDNotIn applies the NotIn predicate on the ID field.
func IDNotIn(ids ...int) predicate.PluginState {
	return predicate.PluginState(sql.FieldNotIn(FieldID, ids...))
}

// IDGT applies the GT predicate on the ID field.
func IDGT(id int) predicate.PluginState {
	return predicate.PluginState(sql.FieldGT(FieldID, id))
}

// IDGTE applies the GTE predicate on the ID field.
func IDGTE(id int) predicate.PluginState {
	return predicate.PluginState(sql.FieldGTE(FieldID, id))
}

// IDLT applies the LT predicate on the ID field.
func IDLT(id int) predicate.PluginState {
	return predicate.PluginState(sql.FieldLT(FieldID, id))
}

// IDLTE applies the LTE predicate on the ID field.
func IDLTE(id int) predicate.PluginState {
	return predicate.PluginState(sql.FieldLTE(FieldID, id))
}

// PluginID applies equality check predicate on the "plugin_id" field. It's identical to PluginIDEQ.
func PluginID(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldPluginID, v))
}

// Key applies equality check predicate on the "key" field. It's identical to KeyEQ.
func Key(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldKey, v))
}

// Value applies equality check predicate on the "value" field. It's identical to ValueEQ.
func Value(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldValue, v))
}

// UpdatedAt applies equality check predicate on the "updated_at" field. It's identical to UpdatedAtEQ.
func UpdatedAt(v time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldUpdatedAt, v))
}

// PluginIDEQ applies the EQ predicate on the "plugin_id" field.
func PluginIDEQ(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldPluginID, v))
}

// PluginIDNEQ applies the NEQ predicate on the "plugin_id" field.
func PluginIDNEQ(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldNEQ(FieldPluginID, v))
}

// PluginIDIn applies the In predicate on the "plugin_id" field.
func PluginIDIn(vs ...string) predicate.PluginState {
	return predicate.PluginState(sql.FieldIn(FieldPluginID, vs...))
}

// PluginIDNotIn applies the NotIn predicate on the "plugin_id" field.
func PluginIDNotIn(vs ...string) predicate.PluginState {
	return predicate.PluginState(sql.FieldNotIn(FieldPluginID, vs...))
}

// PluginIDGT applies the GT predicate on the "plugin_id" field.
func PluginIDGT(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldGT(FieldPluginID, v))
}

// PluginIDGTE applies the GTE predicate on the "plugin_id" field.
func PluginIDGTE(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldGTE(FieldPluginID, v))
}

// PluginIDLT applies the LT predicate on the "plugin_id" field.
func PluginIDLT(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldLT(FieldPluginID, v))
}

// PluginIDLTE applies the LTE predicate on the "plugin_id" field.
func PluginIDLTE(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldLTE(FieldPluginID, v))
}

// PluginIDContains applies the Contains predicate on the "plugin_id" field.
func PluginIDContains(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldContains(FieldPluginID, v))
}

// PluginIDHasPrefix applies the HasPrefix predicate on the "plugin_id" field.
func PluginIDHasPrefix(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldHasPrefix(FieldPluginID, v))
}

// PluginIDHasSuffix applies the HasSuffix predicate on the "plugin_id" field.
func PluginIDHasSuffix(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldHasSuffix(FieldPluginID, v))
}

// PluginIDEqualFold applies the EqualFold predicate on the "plugin_id" field.
func PluginIDEqualFold(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEqualFold(FieldPluginID, v))
}

// PluginIDContainsFold applies the ContainsFold predicate on the "plugin_id" field.
func PluginIDContainsFold(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldContainsFold(FieldPluginID, v))
}

// KeyEQ applies the EQ predicate on the "key" field.
func KeyEQ(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldKey, v))
}

// KeyNEQ applies the NEQ predicate on the "key" field.
func KeyNEQ(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldNEQ(FieldKey, v))
}

// KeyIn applies the In predicate on the "key" field.
func KeyIn(vs ...string) predicate.PluginState {
	return predicate.PluginState(sql.FieldIn(FieldKey, vs...))
}

// KeyNotIn applies the NotIn predicate on the "key" field.
func KeyNotIn(vs ...string) predicate.PluginState {
	return predicate.PluginState(sql.FieldNotIn(FieldKey, vs...))
}

// KeyGT applies the GT predicate on the "key" field.
func KeyGT(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldGT(FieldKey, v))
}

// KeyGTE applies the GTE predicate on the "key" field.
func KeyGTE(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldGTE(FieldKey, v))
}

// KeyLT applies the LT predicate on the "key" field.
func KeyLT(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldLT(FieldKey, v))
}

// KeyLTE applies the LTE predicate on the "key" field.
func KeyLTE(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldLTE(FieldKey, v))
}

// KeyContains applies the Contains predicate on the "key" field.
func KeyContains(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldContains(FieldKey, v))
}

// KeyHasPrefix applies the HasPrefix predicate on the "key" field.
func KeyHasPrefix(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldHasPrefix(FieldKey, v))
}

// KeyHasSuffix applies the HasSuffix predicate on the "key" field.
func KeyHasSuffix(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldHasSuffix(FieldKey, v))
}

// KeyEqualFold applies the EqualFold predicate on the "key" field.
func KeyEqualFold(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEqualFold(FieldKey, v))
}

// KeyContainsFold applies the ContainsFold predicate on the "key" field.
func KeyContainsFold(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldContainsFold(FieldKey, v))
}

// ValueEQ applies the EQ predicate on the "value" field.
func ValueEQ(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldValue, v))
}

// ValueNEQ applies the NEQ predicate on the "value" field.
func ValueNEQ(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldNEQ(FieldValue, v))
}

// ValueIn applies the In predicate on the "value" field.
func ValueIn(vs ...string) predicate.PluginState {
	return predicate.PluginState(sql.FieldIn(FieldValue, vs...))
}

// ValueNotIn applies the NotIn predicate on the "value" field.
func ValueNotIn(vs ...string) predicate.PluginState {
	return predicate.PluginState(sql.FieldNotIn(FieldValue, vs...))
}

// ValueGT applies the GT predicate on the "value" field.
func ValueGT(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldGT(FieldValue, v))
}

// ValueGTE applies the GTE predicate on the "value" field.
func ValueGTE(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldGTE(FieldValue, v))
}

// ValueLT applies the LT predicate on the "value" field.
func ValueLT(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldLT(FieldValue, v))
}

// ValueLTE applies the LTE predicate on the "value" field.
func ValueLTE(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldLTE(FieldValue, v))
}

// ValueContains applies the Contains predicate on the "value" field.
func ValueContains(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldContains(FieldValue, v))
}

// ValueHasPrefix applies the HasPrefix predicate on the "value" field.
func ValueHasPrefix(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldHasPrefix(FieldValue, v))
}

// ValueHasSuffix applies the HasSuffix predicate on the "value" field.
func ValueHasSuffix(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldHasSuffix(FieldValue, v))
}

// ValueEqualFold applies the EqualFold predicate on the "value" field.
func ValueEqualFold(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldEqualFold(FieldValue, v))
}

// ValueContainsFold applies the ContainsFold predicate on the "value" field.
func ValueContainsFold(v string) predicate.PluginState {
	return predicate.PluginState(sql.FieldContainsFold(FieldValue, v))
}

// UpdatedAtEQ applies the EQ predicate on the "updated_at" field.
func UpdatedAtEQ(v time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldEQ(FieldUpdatedAt, v))
}

// UpdatedAtNEQ applies the NEQ predicate on the "updated_at" field.
func UpdatedAtNEQ(v time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldNEQ(FieldUpdatedAt, v))
}

// UpdatedAtIn applies the In predicate on the "updated_at" field.
func UpdatedAtIn(vs ...time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldIn(FieldUpdatedAt, vs...))
}

// UpdatedAtNotIn applies the NotIn predicate on the "updated_at" field.
func UpdatedAtNotIn(vs ...time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldNotIn(FieldUpdatedAt, vs...))
}

// UpdatedAtGT applies the GT predicate on the "updated_at" field.
func UpdatedAtGT(v time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldGT(FieldUpdatedAt, v))
}

// UpdatedAtGTE applies the GTE predicate on the "updated_at" field.
func UpdatedAtGTE(v time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldGTE(FieldUpdatedAt, v))
}

// UpdatedAtLT applies the LT predicate on the "updated_at" field.
func UpdatedAtLT(v time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldLT(FieldUpdatedAt, v))
}

// UpdatedAtLTE applies the LTE predicate on the "updated_at" field.
func UpdatedAtLTE(v time.Time) predicate.PluginState {
	return predicate.PluginState(sql.FieldLTE(FieldUpdatedAt, v))
}

// And groups predicates with the AND operator between them.
func And(predicates ...predicate.PluginState) predicate.PluginState {
	return predicate.PluginState(sql.AndPredicates(predicates...))
}

// Or groups predicates with the OR operator between them.
func Or(predicates ...predicate.PluginState) predicate.PluginState {
	return predicate.PluginState(sql.OrPredicates(predicates...))
}

// Not applies the not operator on the given predicate.
func Not(p predicate.PluginState) predicate.PluginState {
	return predicate.PluginState(sql.NotPredicates(p))
}

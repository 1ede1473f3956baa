// Code generated by ent, DO NOT EDIT.

package ent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"

	"github.com/bastionmud/bastion/ent/migrate"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/bastionmud/bastion/ent/commandhistory"
	"github.com/bastionmud/bastion/ent/pluginstate"
	"github.com/bastionmud/bastion/ent/setting"
)

// Client is the client that holds all ent builders.
type Client struct {
	config
	// Schema is the client for creating, migrating and dropping schema.
	Schema *migrate.Schema
	// CommandHistory is the client for interacting with the CommandHistory builders.
	CommandHistory *CommandHistoryClient
	// PluginState is the client for interacting with the PluginState builders.
	PluginState *PluginStateClient
	// Setting is the client for interacting with the Setting builders.
	Setting *SettingClient
}

// NewClient creates a new client configured with the given options.
func NewClient(opts ...Option) *Client {
	client := &Client{config: newConfig(opts...)}
	client.init()
	return client
}

func (c *Client) init() {
	c.Schema = migrate.NewSchema(c.driver)
	c.CommandHistory = NewCommandHistoryClient(c.config)
	c.PluginState = NewPluginStateClient(c.config)
	c.Setting = NewSettingClient(c.config)
}

type (
	// config is the configuration for the client and its builder.
	config struct {
		// driver used for executing database requests.
		driver dialect.Driver
		// debug enable a debug logging.
		debug bool
		// log used for logging on debug mode.
		log func(...any)
		// hooks to execute on mutations.
		hooks *hooks
		// interceptors to execute on queries.
		inters *inters
	}
	// Option function to configure the client.
	Option func(*config)
)

// newConfig creates a new config for the client.
func newConfig(opts ...Option) config {
	cfg := config{log: log.Println, hooks: &hooks{}, inters: &inters{}}
	cfg.options(opts...)
	return cfg
}

// options applies the options on the config object.
func (c *config) options(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.debug {
		c.driver = dialect.Debug(c.driver, c.log)
	}
}

// Debug enables debug logging on the ent.Driver.
func Debug() Option {
	return func(c *config) {
		c.debug = true
	}
}

// Log sets the logging function for debug mode.
func Log(fn func(...any)) Option {
	return func(c *config) {
		c.log = fn
	}
}

// Driver configures the client driver.
func Driver(driver dialect.Driver) Option {
	return func(c *config) {
		c.driver = driver
	}
}

// Open opens a database/sql.DB specified by the driver name and
// the data source name, and returns a new client attached to it.
// Optional parameters can be added for configuring the client.
func Open(driverName, dataSourceName string, options ...Option) (*Client, error) {
	switch driverName {
	case dialect.MySQL, dialect.Postgres, dialect.SQLite:
		drv, err := sql.Open(driverName, dataSourceName)
		if err != nil {
			return nil, err
		}
		return NewClient(append(options, Driver(drv))...), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %q", driverName)
	}
}

// ErrTxStarted is returned when trying to start a new transaction from a transactional client.
var ErrTxStarted = errors.New("ent: cannot start a transaction within a transaction")

// Tx returns a new transactional client. The provided context
// is used until the transaction is committed or rolled back.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	if _, ok := c.driver.(*txDriver); ok {
		return nil, ErrTxStarted
	}
	tx, err := newTx(ctx, c.driver)
	if err != nil {
		return nil, fmt.Errorf("ent: starting a transaction: %w", err)
	}
	cfg := c.config
	cfg.driver = tx
	return &Tx{
		ctx:            ctx,
		config:         cfg,
		CommandHistory: NewCommandHistoryClient(cfg),
		PluginState:    NewPluginStateClient(cfg),
		Setting:        NewSettingClient(cfg),
	}, nil
}

// BeginTx returns a transactional client with specified options.
func (c *Client) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	if _, ok := c.driver.(*txDriver); ok {
		return nil, errors.New("ent: cannot start a transaction within a transaction")
	}
	tx, err := c.driver.(interface {
		BeginTx(context.Context, *sql.TxOptions) (dialect.Tx, error)
	}).BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("ent: starting a transaction: %w", err)
	}
	cfg := c.config
	cfg.driver = &txDriver{tx: tx, drv: c.driver}
	return &Tx{
		ctx:            ctx,
		config:         cfg,
		CommandHistory: NewCommandHistoryClient(cfg),
		PluginState:    NewPluginStateClient(cfg),
		Setting:        NewSettingClient(cfg),
	}, nil
}

// Debug returns a new debug-client. It's used to get verbose logging on specific operations.
//
//	client.Debug().
//		CommandHistory.
//		Query().
//		Count(ctx)
func (c *Client) Debug() *Client {
	if c.debug {
		return c
	}
	cfg := c.config
	cfg.driver = dialect.Debug(c.driver, c.log)
	client := &Client{config: cfg}
	client.init()
	return client
}

// Close closes the database connection and prevents new queries from starting.
func (c *Client) Close() error {
	return c.driver.Close()
}

// Use adds the mutation hooks to all the entity clients.
// In order to add hooks to a specific client, call: `client.Node.Use(...)`.
func (c *Client) Use(hooks ...Hook) {
	c.CommandHistory.Use(hooks...)
	c.PluginState.Use(hooks...)
	c.Setting.Use(hooks...)
}

// Intercept adds the query interceptors to all the entity clients.
// In order to add interceptors to a specific client, call: `client.Node.Intercept(...)`.
func (c *Client) Intercept(interceptors ...Interceptor) {
	c.CommandHistory.Intercept(interceptors...)
	c.PluginState.Intercept(interceptors...)
	c.Setting.Intercept(interceptors...)
}

// Mutate implements the ent.Mutator interface.
func (c *Client) Mutate(ctx context.Context, m Mutation) (Value, error) {
	switch m := m.(type) {
	case *CommandHistoryMutation:
		return c.CommandHistory.mutate(ctx, m)
	case *PluginStateMutation:
		return c.PluginState.mutate(ctx, m)
	case *SettingMutation:
		return c.Setting.mutate(ctx, m)
	default:
		return nil, fmt.Errorf("ent: unknown mutation type %T", m)
	}
}

// CommandHistoryClient is a client for the CommandHistory schema.
type CommandHistoryClient struct {
	config
}

// NewCommandHistoryClient returns a client for the CommandHistory from the given config.
func NewCommandHistoryClient(c config) *CommandHistoryClient {
	return &CommandHistoryClient{config: c}
}

// Use adds a list of mutation hooks to the hooks stack.
// A call to `Use(f, g, h)` equals to `commandhistory.Hooks(f(g(h())))`.
func (c *CommandHistoryClient) Use(hooks ...Hook) {
	c.hooks.CommandHistory = append(c.hooks.CommandHistory, hooks...)
}

// Intercept adds a list of query interceptors to the interceptors stack.
// A call to `Intercept(f, g, h)` equals to `commandhistory.Intercept(f(g(h())))`.
func (c *CommandHistoryClient) Intercept(interceptors ...Interceptor) {
	c.inters.CommandHistory = append(c.inters.CommandHistory, interceptors...)
}

// Create returns a builder for creating a CommandHistory entity.
func (c *CommandHistoryClient) Create() *CommandHistoryCreate {
	mutation := newCommandHistoryMutation(c.config, OpCreate)
	return &CommandHistoryCreate{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// CreateBulk returns a builder for creating a bulk of CommandHistory entities.
func (c *CommandHistoryClient) CreateBulk(builders ...*CommandHistoryCreate) *CommandHistoryCreateBulk {
	return &CommandHistoryCreateBulk{config: c.config, builders: builders}
}

// MapCreateBulk creates a bulk creation builder from the given slice. For each item in the slice, the function creates
// a builder and applies setFunc on it.
func (c *CommandHistoryClient) MapCreateBulk(slice any, setFunc func(*CommandHistoryCreate, int)) *CommandHistoryCreateBulk {
	rv := reflect.ValueOf(slice)
	if rv.Kind() != reflect.Slice {
		return &CommandHistoryCreateBulk{err: fmt.Errorf("calling to CommandHistoryClient.MapCreateBulk with wrong type %T, need slice", slice)}
	}
	builders := make([]*CommandHistoryCreate, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		builders[i] = c.Create()
		setFunc(builders[i], i)
	}
	return &CommandHistoryCreateBulk{config: c.config, builders: builders}
}

// Update returns an update builder for CommandHistory.
func (c *CommandHistoryClient) Update() *CommandHistoryUpdate {
	mutation := newCommandHistoryMutation(c.config, OpUpdate)
	return &CommandHistoryUpdate{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// UpdateOne returns an update builder for the given entity.
func (c *CommandHistoryClient) UpdateOne(_m *CommandHistory) *CommandHistoryUpdateOne {
	mutation := newCommandHistoryMutation(c.config, OpUpdateOne, withCommandHistory(_m))
	return &CommandHistoryUpdateOne{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// UpdateOneID returns an update builder for the given id.
func (c *CommandHistoryClient) UpdateOneID(id int) *CommandHistoryUpdateOne {
	mutation := newCommandHistoryMutation(c.config, OpUpdateOne, withCommandHistoryID(id))
	return &CommandHistoryUpdateOne{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// Delete returns a delete builder for CommandHistory.
func (c *CommandHistoryClient) Delete() *CommandHistoryDelete {
	mutation := newCommandHistoryMutation(c.config, OpDelete)
	return &CommandHistoryDelete{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// DeleteOne returns a builder for deleting the given entity.
func (c *CommandHistoryClient) DeleteOne(_m *CommandHistory) *CommandHistoryDeleteOne {
	return c.DeleteOneID(_m.ID)
}

// DeleteOneID returns a builder for deleting the given entity by its id.
func (c *CommandHistoryClient) DeleteOneID(id int) *CommandHistoryDeleteOne {
	builder := c.Delete().Where(commandhistory.ID(id))
	builder.mutation.id = &id
	builder.mutation.op = OpDeleteOne
	return &CommandHistoryDeleteOne{builder}
}

// Query returns a query builder for CommandHistory.
func (c *CommandHistoryClient) Query() *CommandHistoryQuery {
	return &CommandHistoryQuery{
		config: c.config,
		ctx:    &QueryContext{Type: TypeCommandHistory},
		inters: c.Interceptors(),
	}
}

// Get returns a CommandHistory entity by its id.
func (c *CommandHistoryClient) Get(ctx context.Context, id int) (*CommandHistory, error) {
	return c.Query().Where(commandhistory.ID(id)).Only(ctx)
}

// GetX is like Get, but panics if an error occurs.
func (c *CommandHistoryClient) GetX(ctx context.Context, id int) *CommandHistory {
	obj, err := c.Get(ctx, id)
	if err != nil {
		panic(err)
	}
	return obj
}

// Hooks returns the client hooks.
func (c *CommandHistoryClient) Hooks() []Hook {
	return c.hooks.CommandHistory
}

// Interceptors returns the client interceptors.
func (c *CommandHistoryClient) Interceptors() []Interceptor {
	return c.inters.CommandHistory
}

func (c *CommandHistoryClient) mutate(ctx context.Context, m *CommandHistoryMutation) (Value, error) {
	switch m.Op() {
	case OpCreate:
		return (&CommandHistoryCreate{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpUpdate:
		return (&CommandHistoryUpdate{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpUpdateOne:
		return (&CommandHistoryUpdateOne{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpDelete, OpDeleteOne:
		return (&CommandHistoryDelete{config: c.config, hooks: c.Hooks(), mutation: m}).Exec(ctx)
	default:
		return nil, fmt.Errorf("ent: unknown CommandHistory mutation op: %q", m.Op())
	}
}

// PluginStateClient is a client for the PluginState schema.
type PluginStateClient struct {
	config
}

// NewPluginStateClient returns a client for the PluginState from the given config.
func NewPluginStateClient(c config) *PluginStateClient {
	return &PluginStateClient{config: c}
}

// Use adds a list of mutation hooks to the hooks stack.
// A call to `Use(f, g, h)` equals to `pluginstate.Hooks(f(g(h())))`.
func (c *PluginStateClient) Use(hooks ...Hook) {
	c.hooks.PluginState = append(c.hooks.PluginState, hooks...)
}

// Intercept adds a list of query interceptors to the interceptors stack.
// A call to `Intercept(f, g, h)` equals to `pluginstate.Intercept(f(g(h())))`.
func (c *PluginStateClient) Intercept(interceptors ...Interceptor) {
	c.inters.PluginState = append(c.inters.PluginState, interceptors...)
}

// Create returns a builder for creating a PluginState entity.
func (c *PluginStateClient) Create() *PluginStateCreate {
	mutation := newPluginStateMutation(c.config, OpCreate)
	return &PluginStateCreate{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// CreateBulk returns a builder for creating a bulk of PluginState entities.
func (c *PluginStateClient) CreateBulk(builders ...*PluginStateCreate) *PluginStateCreateBulk {
	return &PluginStateCreateBulk{config: c.config, builders: builders}
}

// MapCreateBulk creates a bulk creation builder from the given slice. For each item in the slice, the function creates
// a builder and applies setFunc on it.
func (c *PluginStateClient) MapCreateBulk(slice any, setFunc func(*PluginStateCreate, int)) *PluginStateCreateBulk {
	rv := reflect.ValueOf(slice)
	if rv.Kind() != reflect.Slice {
		return &PluginStateCreateBulk{err: fmt.Errorf("calling to PluginStateClient.MapCreateBulk with wrong type %T, need slice", slice)}
	}
	builders := make([]*PluginStateCreate, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		builders[i] = c.Create()
		setFunc(builders[i], i)
	}
	return &PluginStateCreateBulk{config: c.config, builders: builders}
}

// Update returns an update builder for PluginState.
func (c *PluginStateClient) Update() *PluginStateUpdate {
	mutation := newPluginStateMutation(c.config, OpUpdate)
	return &PluginStateUpdate{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// UpdateOne returns an update builder for the given entity.
func (c *PluginStateClient) UpdateOne(_m *PluginState) *PluginStateUpdateOne {
	mutation := newPluginStateMutation(c.config, OpUpdateOne, withPluginState(_m))
	return &PluginStateUpdateOne{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// UpdateOneID returns an update builder for the given id.
func (c *PluginStateClient) UpdateOneID(id int) *PluginStateUpdateOne {
	mutation := newPluginStateMutation(c.config, OpUpdateOne, withPluginStateID(id))
	return &PluginStateUpdateOne{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// Delete returns a delete builder for PluginState.
func (c *PluginStateClient) Delete() *PluginStateDelete {
	mutation := newPluginStateMutation(c.config, OpDelete)
	return &PluginStateDelete{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// DeleteOne returns a builder for deleting the given entity.
func (c *PluginStateClient) DeleteOne(_m *PluginState) *PluginStateDeleteOne {
	return c.DeleteOneID(_m.ID)
}

// DeleteOneID returns a builder for deleting the given entity by its id.
func (c *PluginStateClient) DeleteOneID(id int) *PluginStateDeleteOne {
	builder := c.Delete().Where(pluginstate.ID(id))
	builder.mutation.id = &id
	builder.mutation.op = OpDeleteOne
	return &PluginStateDeleteOne{builder}
}

// Query returns a query builder for PluginState.
func (c *PluginStateClient) Query() *PluginStateQuery {
	return &PluginStateQuery{
		config: c.config,
		ctx:    &QueryContext{Type: TypePluginState},
		inters: c.Interceptors(),
	}
}

// Get returns a PluginState entity by its id.
func (c *PluginStateClient) Get(ctx context.Context, id int) (*PluginState, error) {
	return c.Query().Where(pluginstate.ID(id)).Only(ctx)
}

// GetX is like Get, but panics if an error occurs.
func (c *PluginStateClient) GetX(ctx context.Context, id int) *PluginState {
	obj, err := c.Get(ctx, id)
	if err != nil {
		panic(err)
	}
	return obj
}

// Hooks returns the client hooks.
func (c *PluginStateClient) Hooks() []Hook {
	return c.hooks.PluginState
}

// Interceptors returns the client interceptors.
func (c *PluginStateClient) Interceptors() []Interceptor {
	return c.inters.PluginState
}

func (c *PluginStateClient) mutate(ctx context.Context, m *PluginStateMutation) (Value, error) {
	switch m.Op() {
	case OpCreate:
		return (&PluginStateCreate{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpUpdate:
		return (&PluginStateUpdate{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpUpdateOne:
		return (&PluginStateUpdateOne{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpDelete, OpDeleteOne:
		return (&PluginStateDelete{config: c.config, hooks: c.Hooks(), mutation: m}).Exec(ctx)
	default:
		return nil, fmt.Errorf("ent: unknown PluginState mutation op: %q", m.Op())
	}
}

// SettingClient is a client for the Setting schema.
type SettingClient struct {
	config
}

// NewSettingClient returns a client for the Setting from the given config.
func NewSettingClient(c config) *SettingClient {
	return &SettingClient{config: c}
}

// Use adds a list of mutation hooks to the hooks stack.
// A call to `Use(f, g, h)` equals to `setting.Hooks(f(g(h())))`.
func (c *SettingClient) Use(hooks ...Hook) {
	c.hooks.Setting = append(c.hooks.Setting, hooks...)
}

// Intercept adds a list of query interceptors to the interceptors stack.
// A call to `Intercept(f, g, h)` equals to `setting.Intercept(f(g(h())))`.
func (c *SettingClient) Intercept(interceptors ...Interceptor) {
	c.inters.Setting = append(c.inters.Setting, interceptors...)
}

// Create returns a builder for creating a Setting entity.
func (c *SettingClient) Create() *SettingCreate {
	mutation := newSettingMutation(c.config, OpCreate)
	return &SettingCreate{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// CreateBulk returns a builder for creating a bulk of Setting entities.
func (c *SettingClient) CreateBulk(builders ...*SettingCreate) *SettingCreateBulk {
	return &SettingCreateBulk{config: c.config, builders: builders}
}

// MapCreateBulk creates a bulk creation builder from the given slice. For each item in the slice, the function creates
// a builder and applies setFunc on it.
func (c *SettingClient) MapCreateBulk(slice any, setFunc func(*SettingCreate, int)) *SettingCreateBulk {
	rv := reflect.ValueOf(slice)
	if rv.Kind() != reflect.Slice {
		return &SettingCreateBulk{err: fmt.Errorf("calling to SettingClient.MapCreateBulk with wrong type %T, need slice", slice)}
	}
	builders := make([]*SettingCreate, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		builders[i] = c.Create()
		setFunc(builders[i], i)
	}
	return &SettingCreateBulk{config: c.config, builders: builders}
}

// Update returns an update builder for Setting.
func (c *SettingClient) Update() *SettingUpdate {
	mutation := newSettingMutation(c.config, OpUpdate)
	return &SettingUpdate{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// UpdateOne returns an update builder for the given entity.
func (c *SettingClient) UpdateOne(_m *Setting) *SettingUpdateOne {
	mutation := newSettingMutation(c.config, OpUpdateOne, withSetting(_m))
	return &SettingUpdateOne{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// UpdateOneID returns an update builder for the given id.
func (c *SettingClient) UpdateOneID(id int) *SettingUpdateOne {
	mutation := newSettingMutation(c.config, OpUpdateOne, withSettingID(id))
	return &SettingUpdateOne{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// Delete returns a delete builder for Setting.
func (c *SettingClient) Delete() *SettingDelete {
	mutation := newSettingMutation(c.config, OpDelete)
	return &SettingDelete{config: c.config, hooks: c.Hooks(), mutation: mutation}
}

// DeleteOne returns a builder for deleting the given entity.
func (c *SettingClient) DeleteOne(_m *Setting) *SettingDeleteOne {
	return c.DeleteOneID(_m.ID)
}

// DeleteOneID returns a builder for deleting the given entity by its id.
func (c *SettingClient) DeleteOneID(id int) *SettingDeleteOne {
	builder := c.Delete().Where(setting.ID(id))
	builder.mutation.id = &id
	builder.mutation.op = OpDeleteOne
	return &SettingDeleteOne{builder}
}

// Query returns a query builder for Setting.
func (c *SettingClient) Query() *SettingQuery {
	return &SettingQuery{
		config: c.config,
		ctx:    &QueryContext{Type: TypeSetting},
		inters: c.Interceptors(),
	}
}

// Get returns a Setting entity by its id.
func (c *SettingClient) Get(ctx context.Context, id int) (*Setting, error) {
	return c.Query().Where(setting.ID(id)).Only(ctx)
}

// GetX is like Get, but panics if an error occurs.
func (c *SettingClient) GetX(ctx context.Context, id int) *Setting {
	obj, err := c.Get(ctx, id)
	if err != nil {
		panic(err)
	}
	return obj
}

// Hooks returns the client hooks.
func (c *SettingClient) Hooks() []Hook {
	return c.hooks.Setting
}

// Interceptors returns the client interceptors.
func (c *SettingClient) Interceptors() []Interceptor {
	return c.inters.Setting
}

func (c *SettingClient) mutate(ctx context.Context, m *SettingMutation) (Value, error) {
	switch m.Op() {
	case OpCreate:
		return (&SettingCreate{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpUpdate:
		return (&SettingUpdate{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpUpdateOne:
		return (&SettingUpdateOne{config: c.config, hooks: c.Hooks(), mutation: m}).Save(ctx)
	case OpDelete, OpDeleteOne:
		return (&SettingDelete{config: c.config, hooks: c.Hooks(), mutation: m}).Exec(ctx)
	default:
		return nil, fmt.Errorf("ent: unknown Setting mutation op: %q", m.Op())
	}
}

// hooks and interceptors per client, for fast access.
type (
	hooks struct {
		CommandHistory, PluginState, Setting []ent.Hook
	}
	inters struct {
		CommandHistory, PluginState, Setting []ent.Interceptor
	}
)

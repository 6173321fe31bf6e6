package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"storebot/internal/util"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrForbidden       = errors.New("permission denied")
	ErrCooldown        = errors.New("command on cooldown")
	ErrInvalidArgument = errors.New("invalid argument")
)

// CooldownError carries the time left on a running cooldown
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: %s left", ErrCooldown, e.Remaining.Round(time.Millisecond))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldown
}

// OptionType is the declared type of a command option
type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionInteger
	OptionAttachment
)

func (t OptionType) String() string {
	switch t {
	case OptionString:
		return "string"
	case OptionInteger:
		return "integer"
	case OptionAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// OptionSpec declares one command option. Min and Max bound integer values
// and string lengths; zero means unbounded.
type OptionSpec struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	Min         int64
	Max         int64
	Choices     []string
}

// HandlerFunc runs a validated command invocation
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Command maps a command name to its handler and parameter schema
type Command struct {
	Name        string
	Description string
	AdminOnly   bool
	Cooldown    time.Duration
	Options     []OptionSpec
	Handler     HandlerFunc
}

// Invocation is a raw command call as delivered by the chat platform
type Invocation struct {
	Command     string
	UserID      string
	Username    string
	IsAdmin     bool
	Options     map[string]interface{}
	Attachments map[string]*discordgo.MessageAttachment
}

// Request is a command call whose arguments match the command schema
type Request struct {
	Command  string
	UserID   string
	Username string
	IsAdmin  bool
	Args     Args
}

// Args holds converted option values: string, int64 or *discordgo.MessageAttachment
type Args map[string]interface{}

// String returns a string option or ""
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Int returns an integer option or 0
func (a Args) Int(name string) int64 {
	v, _ := a[name].(int64)
	return v
}

// Attachment returns an attachment option or nil
func (a Args) Attachment(name string) *discordgo.MessageAttachment {
	v, _ := a[name].(*discordgo.MessageAttachment)
	return v
}

// Response is what a handler sends back to the invoking user
type Response struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
	Files   []*discordgo.File
}

// Cooldowns starts per-key cooldowns. StartCooldown returns the time left
// on a running cooldown, or zero when a new one started.
type Cooldowns interface {
	StartCooldown(ctx context.Context, key string, d time.Duration) (time.Duration, error)
}

var commandNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// Guard can veto an invocation once its permission check has passed
type Guard func(ctx context.Context, cmd *Command, inv Invocation) error

// Registry is the typed command table
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]*Command
	order     []string
	guards    []Guard
	cooldowns Cooldowns
	logger    *zap.Logger
}

// NewRegistry creates an empty registry. A nil cooldowns falls back to an
// in-process cooldown table.
func NewRegistry(cooldowns Cooldowns) *Registry {
	if cooldowns == nil {
		cooldowns = NewMemoryCooldowns()
	}
	return &Registry{
		commands:  make(map[string]*Command),
		cooldowns: cooldowns,
		logger:    util.Named("commands"),
	}
}

// Register adds a command after checking its schema
func (r *Registry) Register(cmd Command) error {
	if !commandNamePattern.MatchString(cmd.Name) {
		return fmt.Errorf("invalid command name %q", cmd.Name)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}

	seen := make(map[string]bool, len(cmd.Options))
	optional := false
	for _, opt := range cmd.Options {
		if !commandNamePattern.MatchString(opt.Name) {
			return fmt.Errorf("command %s: invalid option name %q", cmd.Name, opt.Name)
		}
		if seen[opt.Name] {
			return fmt.Errorf("command %s: duplicate option %s", cmd.Name, opt.Name)
		}
		seen[opt.Name] = true

		switch opt.Type {
		case OptionString, OptionInteger, OptionAttachment:
		default:
			return fmt.Errorf("command %s: option %s has unknown type", cmd.Name, opt.Name)
		}

		if opt.Required && optional {
			return fmt.Errorf("command %s: required option %s follows an optional one", cmd.Name, opt.Name)
		}
		if !opt.Required {
			optional = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("command %s already registered", cmd.Name)
	}
	c := cmd
	r.commands[cmd.Name] = &c
	r.order = append(r.order, cmd.Name)
	return nil
}

// MustRegister registers commands and panics on a schema error
func (r *Registry) MustRegister(cmds ...Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// Use adds a guard. Guards run in order before cooldowns are charged.
func (r *Registry) Use(g Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards = append(r.guards, g)
}

// Lookup returns a registered command
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Dispatch checks permission, cooldown and arguments of an invocation and
// runs the command handler.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (*Response, error) {
	cmd, ok := r.Lookup(inv.Command)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Command)
	}

	start := time.Now()
	resp, err := r.dispatch(ctx, cmd, inv)
	util.CommandLatency.WithLabelValues(cmd.Name).Observe(time.Since(start).Seconds())
	util.CommandsTotal.WithLabelValues(cmd.Name, commandStatus(err)).Inc()

	if err != nil && commandStatus(err) == "error" {
		r.logger.Warn("Command failed",
			zap.String("command", cmd.Name),
			zap.String("user_id", inv.UserID),
			zap.Error(err))
	}
	return resp, err
}

func (r *Registry) dispatch(ctx context.Context, cmd *Command, inv Invocation) (*Response, error) {
	if cmd.AdminOnly && !inv.IsAdmin {
		return nil, ErrForbidden
	}

	r.mu.RLock()
	guards := r.guards
	r.mu.RUnlock()
	for _, guard := range guards {
		if err := guard(ctx, cmd, inv); err != nil {
			return nil, err
		}
	}

	if cmd.Cooldown > 0 {
		key := fmt.Sprintf("cmd:%s:%s", cmd.Name, inv.UserID)
		left, err := r.cooldowns.StartCooldown(ctx, key, cmd.Cooldown)
		if err != nil {
			r.logger.Warn("Cooldown check failed", zap.String("key", key), zap.Error(err))
		} else if left > 0 {
			return nil, &CooldownError{Remaining: left}
		}
	}

	args, err := parseArgs(cmd, inv)
	if err != nil {
		return nil, err
	}

	return cmd.Handler(ctx, &Request{
		Command:  cmd.Name,
		UserID:   inv.UserID,
		Username: inv.Username,
		IsAdmin:  inv.IsAdmin,
		Args:     args,
	})
}

func commandStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, errMaintenance):
		return "maintenance"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

func parseArgs(cmd *Command, inv Invocation) (Args, error) {
	for name := range inv.Options {
		if !cmd.hasOption(name) {
			return nil, fmt.Errorf("%w: unknown option %s", ErrInvalidArgument, name)
		}
	}

	args := make(Args, len(cmd.Options))
	for _, opt := range cmd.Options {
		raw, ok := inv.Options[opt.Name]
		if !ok || raw == nil {
			if opt.Required {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidArgument, opt.Name)
			}
			continue
		}

		value, err := convertOption(opt, raw, inv.Attachments)
		if err != nil {
			return nil, err
		}
		args[opt.Name] = value
	}
	return args, nil
}

func (c *Command) hasOption(name string) bool {
	for _, opt := range c.Options {
		if opt.Name == name {
			return true
		}
	}
	return false
}

func convertOption(opt OptionSpec, raw interface{}, attachments map[string]*discordgo.MessageAttachment) (interface{}, error) {
	switch opt.Type {
	case OptionString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be text", ErrInvalidArgument, opt.Name)
		}
		s = strings.TrimSpace(s)
		if opt.Required && s == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidArgument, opt.Name)
		}
		n := int64(len([]rune(s)))
		if opt.Min > 0 && n < opt.Min {
			return nil, fmt.Errorf("%w: %s must be at least %d characters", ErrInvalidArgument, opt.Name, opt.Min)
		}
		if opt.Max > 0 && n > opt.Max {
			return nil, fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidArgument, opt.Name, opt.Max)
		}
		if len(opt.Choices) > 0 && !containsFold(opt.Choices, s) {
			return nil, fmt.Errorf("%w: %s must be one of %s", ErrInvalidArgument, opt.Name, strings.Join(opt.Choices, ", "))
		}
		return s, nil

	case OptionInteger:
		v, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a whole number", ErrInvalidArgument, opt.Name)
		}
		if (opt.Min != 0 || opt.Max != 0) && (v < opt.Min || v > opt.Max) {
			return nil, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidArgument, opt.Name, opt.Min, opt.Max)
		}
		return v, nil

	case OptionAttachment:
		id, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a file", ErrInvalidArgument, opt.Name)
		}
		att, ok := attachments[id]
		if !ok || att == nil {
			return nil, fmt.Errorf("%w: %s attachment is missing", ErrInvalidArgument, opt.Name)
		}
		return att, nil
	}
	return nil, fmt.Errorf("%w: %s has unknown type", ErrInvalidArgument, opt.Name)
}

func toInt64(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, errors.New("not an integer")
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", raw)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// ApplicationCommands renders the registry as Discord slash commands
func (r *Registry) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adminPerms := int64(discordgo.PermissionAdministrator)
	out := make([]*discordgo.ApplicationCommand, 0, len(r.order))
	for _, name := range r.order {
		cmd := r.commands[name]
		appCmd := &discordgo.ApplicationCommand{
			Name:        cmd.Name,
			Description: cmd.Description,
		}
		if cmd.AdminOnly {
			appCmd.DefaultMemberPermissions = &adminPerms
		}
		for _, opt := range cmd.Options {
			appCmd.Options = append(appCmd.Options, applicationOption(opt))
		}
		out = append(out, appCmd)
	}
	return out
}

func applicationOption(opt OptionSpec) *discordgo.ApplicationCommandOption {
	o := &discordgo.ApplicationCommandOption{
		Name:        opt.Name,
		Description: opt.Description,
		Required:    opt.Required,
	}
	switch opt.Type {
	case OptionString:
		o.Type = discordgo.ApplicationCommandOptionString
		if opt.Min > 0 {
			minLength := int(opt.Min)
			o.MinLength = &minLength
		}
		if opt.Max > 0 {
			o.MaxLength = int(opt.Max)
		}
		for _, choice := range opt.Choices {
			o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
		}
	case OptionInteger:
		o.Type = discordgo.ApplicationCommandOptionInteger
		if opt.Min != 0 || opt.Max != 0 {
			minValue := float64(opt.Min)
			o.MinValue = &minValue
			o.MaxValue = float64(opt.Max)
		}
	case OptionAttachment:
		o.Type = discordgo.ApplicationCommandOptionAttachment
	}
	return o
}

// MemoryCooldowns keeps cooldowns in process memory
type MemoryCooldowns struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryCooldowns creates an in-process cooldown table
func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// StartCooldown implements Cooldowns
func (m *MemoryCooldowns) StartCooldown(_ context.Context, key string, d time.Duration) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.expires[key]; ok && now.Before(until) {
		return until.Sub(now), nil
	}

	for k, until := range m.expires {
		if !now.Before(until) {
			delete(m.expires, k)
		}
	}
	m.expires[key] = now.Add(d)
	return 0, nil
}

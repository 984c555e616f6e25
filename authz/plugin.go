package authz

import (
	"go.uber.org/zap"

	"github.com/leeforge/monitor/plugin"
)

// Options is the authz plugin configuration.
type Options struct {
	SubjectKey string     `json:"subjectKey" default:"subject"`
	Action     string     `json:"action" default:"emit"`
	Anonymous  string     `json:"anonymous"`
	Policies   [][]string `json:"policies" validate:"dive,min=2,max=3,dive,required"`
}

// Define returns a consumer plugin class that installs EmitHook on the
// monitor it is registered with.
func Define() (*plugin.Class, error) {
	return plugin.Define(
		plugin.Descriptor{
			Name: "authz",
			Type: plugin.TypeConsumer,
			Opts: plugin.StructSchema[Options](),
		},
		plugin.Architecture{Init: initPlugin},
	)
}

func initPlugin(ctx plugin.Context, cfg any) error {
	opts := cfg.(*Options)

	enforcer, err := NewEnforcer(opts.Policies...)
	if err != nil {
		return err
	}

	hookOpts := []Option{WithSubjectKey(opts.SubjectKey), WithAction(opts.Action)}
	if opts.Anonymous != "" {
		hookOpts = append(hookOpts, WithAnonymous(opts.Anonymous))
	}
	ctx.SetHook(HookID, EmitHook(enforcer, hookOpts...))
	ctx.Logger().Info("authz hook installed", zap.Int("policies", len(opts.Policies)))
	return nil
}

// ABOUTME: Operator CLI for webhook subscription reconciliation
// ABOUTME: Converges a platform's webhook registrations to one desired target

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/greentic/messaging-gateway/internal/config"
	"github.com/greentic/messaging-gateway/internal/envelope"
	"github.com/greentic/messaging-gateway/internal/store"
	"github.com/greentic/messaging-gateway/internal/webhook"
)

// providerValues is one provider's section in the TOML values file.
type providerValues struct {
	APIBase string `toml:"api_base"`
	Token   string `toml:"token"`
}

// valuesFile holds operator credentials for the supported platforms.
type valuesFile struct {
	Webex    providerValues `toml:"webex"`
	Telegram providerValues `toml:"telegram"`
}

func main() {
	var (
		provider    = flag.String("provider", "", "platform to reconcile: webex or telegram")
		configPath  = flag.String("config", "", "gateway config file; supplies credentials, prefix, timeout, and database defaults")
		valuesPath  = flag.String("values", "", "TOML file with provider credentials; overrides -config")
		targetURL   = flag.String("url", "", "public callback URL the webhook should point at")
		env         = flag.String("env", "", "environment of the tenant scope")
		tenant      = flag.String("tenant", "", "tenant of the tenant scope")
		team        = flag.String("team", "", "team of the tenant scope")
		secretToken = flag.String("secret-token", "", "signing secret handed to the platform")
		genSecret   = flag.Bool("generate-secret", false, "mint a fresh signing secret instead of -secret-token")
		dbPath      = flag.String("db", "", "gateway database path; records the secret after a successful apply")
		namePrefix  = flag.String("name-prefix", "", "registration name prefix (default from -config, else \"greentic\")")
		timeout     = flag.Duration("timeout", 0, "per-call timeout for platform requests (default from -config, else 10s)")
		dryRun      = flag.Bool("dry-run", false, "compute and print the plan without applying it")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, options{
		provider:    *provider,
		configPath:  *configPath,
		valuesPath:  *valuesPath,
		targetURL:   *targetURL,
		scope:       envelope.TenantCtx{Env: *env, Tenant: *tenant, Team: *team},
		secretToken: *secretToken,
		genSecret:   *genSecret,
		dbPath:      *dbPath,
		namePrefix:  *namePrefix,
		timeout:     *timeout,
		dryRun:      *dryRun,
	}); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	provider    string
	configPath  string
	valuesPath  string
	targetURL   string
	scope       envelope.TenantCtx
	secretToken string
	genSecret   bool
	dbPath      string
	namePrefix  string
	timeout     time.Duration
	dryRun      bool
}

func run(ctx context.Context, opts options) error {
	_ = godotenv.Load()

	if opts.provider == "" {
		return fmt.Errorf("-provider is required (webex or telegram)")
	}
	if opts.targetURL == "" {
		return fmt.Errorf("-url is required")
	}

	var values valuesFile
	if opts.valuesPath != "" {
		if _, err := toml.DecodeFile(opts.valuesPath, &values); err != nil {
			return fmt.Errorf("reading values file: %w", err)
		}
	}

	var gatewayCfg *config.Config
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("loading gateway config: %w", err)
		}
		gatewayCfg = cfg
	}
	opts = opts.withConfigDefaults(gatewayCfg)

	name := webhook.DesiredName(opts.namePrefix, opts.scope, opts.provider)

	creds, err := resolveProvider(opts.provider, values, gatewayCfg)
	if err != nil {
		return err
	}
	adapter, err := buildAdapter(opts.provider, creds, name)
	if err != nil {
		return err
	}

	secret := opts.secretToken
	if opts.genSecret {
		if secret != "" {
			return fmt.Errorf("-generate-secret and -secret-token are mutually exclusive")
		}
		if secret, err = webhook.GenerateSecret(); err != nil {
			return fmt.Errorf("generating secret: %w", err)
		}
	}

	desired := webhook.Desired{
		Name:      name,
		TargetURL: opts.targetURL,
		Secret:    secret,
	}

	reconciler := webhook.NewReconciler(nil, opts.timeout)
	result, err := reconciler.Reconcile(ctx, adapter, desired, opts.dryRun)
	if err != nil {
		var rerr *webhook.ReconcileError
		if errors.As(err, &rerr) && len(rerr.Applied) > 0 {
			color.New(color.FgYellow).Fprintf(os.Stderr, "partially applied before failure:\n")
			printJSON(os.Stderr, rerr.Applied)
		}
		return err
	}

	printJSON(os.Stdout, result)

	green := color.New(color.FgGreen)
	if opts.dryRun {
		green.Printf("✓ dry-run: %d planned actions for %q on %s\n",
			len(result.Actions), result.WebhookName, result.Provider)
		return nil
	}

	green.Printf("✓ reconciled %q on %s -> %s\n",
		result.WebhookName, result.Provider, result.TargetURL)

	if secret != "" && opts.dbPath != "" {
		if err := recordSecret(ctx, opts.dbPath, opts.provider, opts.scope, secret); err != nil {
			return fmt.Errorf("recording secret: %w", err)
		}
		green.Printf("✓ secret recorded for %s/%s\n", opts.provider, opts.scope.Key())
	}
	if opts.genSecret {
		fmt.Printf("secret: %s\n", secret)
	}
	return nil
}

// recordSecret stores the signing secret in the gateway database so the
// ingress layer can verify inbound callbacks.
func recordSecret(ctx context.Context, dbPath, provider string, scope envelope.TenantCtx, secret string) error {
	st, err := store.NewSQLiteStore(dbPath, envelope.NewLimits(0, nil))
	if err != nil {
		return err
	}
	defer st.Close()

	return st.PutWebhookSecret(ctx, &store.WebhookSecret{
		Provider: provider,
		Tenant:   scope,
		Secret:   secret,
	})
}

// withConfigDefaults fills prefix, timeout, and database path from the
// gateway config when the corresponding flags were left unset.
func (o options) withConfigDefaults(cfg *config.Config) options {
	if cfg == nil {
		return o
	}
	if o.namePrefix == "" {
		o.namePrefix = cfg.Webhook.NamePrefix
	}
	if o.timeout <= 0 {
		o.timeout = cfg.Webhook.Timeout
	}
	if o.dbPath == "" {
		o.dbPath = cfg.Database.Path
	}
	return o
}

// resolveProvider merges credentials for one platform: the values file
// wins, then the gateway config's providers section, then the
// environment.
func resolveProvider(provider string, values valuesFile, cfg *config.Config) (providerValues, error) {
	var fromValues, fromConfig providerValues
	var envVar string

	switch provider {
	case "webex":
		fromValues = values.Webex
		if cfg != nil {
			fromConfig = providerValues{APIBase: cfg.Providers.Webex.APIBase, Token: cfg.Providers.Webex.Token}
		}
		envVar = "WEBEX_BOT_TOKEN"
	case "telegram":
		fromValues = values.Telegram
		if cfg != nil {
			fromConfig = providerValues{APIBase: cfg.Providers.Telegram.APIBase, Token: cfg.Providers.Telegram.Token}
		}
		envVar = "TELEGRAM_BOT_TOKEN"
	default:
		return providerValues{}, fmt.Errorf("unknown provider %q (want webex or telegram)", provider)
	}

	merged := fromValues
	if merged.APIBase == "" {
		merged.APIBase = fromConfig.APIBase
	}
	if merged.Token == "" {
		merged.Token = fromConfig.Token
	}
	if merged.Token == "" {
		merged.Token = os.Getenv(envVar)
	}
	if merged.Token == "" {
		return providerValues{}, fmt.Errorf("no %s token in values file, gateway config, or %s", provider, envVar)
	}
	return merged, nil
}

func buildAdapter(provider string, creds providerValues, slotName string) (webhook.PlatformAdapter, error) {
	switch provider {
	case "webex":
		return webhook.NewWebexAdapter(creds.APIBase, creds.Token, nil), nil
	case "telegram":
		return webhook.NewTelegramAdapter(creds.APIBase, creds.Token, slotName, nil), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want webex or telegram)", provider)
	}
}

func printJSON(w *os.File, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
	}
}

package di

import (
	"flag"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/openfda-engine/internal/adapters/frontend"
	"github.com/mikey/openfda-engine/internal/config"
	"github.com/mikey/openfda-engine/internal/core"
	"github.com/mikey/openfda-engine/internal/logging"
)

// CLIFlags contains all command line flags for the query application
type CLIFlags struct {
	// Operation flags
	Operation      string
	DrugName       string
	Limit          int
	Detailed       bool
	Identifier     string
	IdentifierType string
	MonthsBack     int
	DrugList       string
	IncludeTrends  bool

	// Upstream flags
	APIKey  string
	BaseURL string
	Timeout string

	// Output flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet registers the query flags on fs and parses args
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// Operation flags
	fs.StringVar(&flags.Operation, "op", core.OpSearchShortages, "Operation to run")
	fs.StringVar(&flags.DrugName, "drug", "", "Medication name")
	fs.IntVar(&flags.Limit, "limit", core.DefaultLimit, "Maximum records to return")
	fs.BoolVar(&flags.Detailed, "detailed", false, "Return full adverse event reports instead of a summary")
	fs.StringVar(&flags.Identifier, "identifier", "", "Label identifier (defaults to -drug)")
	fs.StringVar(&flags.IdentifierType, "type", "", "Label identifier type (generic_name, brand_name, openfda.*)")
	fs.IntVar(&flags.MonthsBack, "months", core.DefaultBatchTrendMonths, "Trend analysis window in months")
	fs.StringVar(&flags.DrugList, "drugs", "", "Comma-separated medication names for batchAnalyze")
	fs.BoolVar(&flags.IncludeTrends, "trends", false, "Include trend analysis in batchAnalyze")

	// Upstream flags
	fs.StringVar(&flags.APIKey, "api-key", "", "openFDA API key")
	fs.StringVar(&flags.BaseURL, "base-url", "https://api.fda.gov", "openFDA base URL")
	fs.StringVar(&flags.Timeout, "timeout", "15s", "Upstream request timeout")

	// Output flags
	fs.BoolVar(&flags.Verbose, "v", false, "Enable verbose logging and print the full result")
	fs.BoolVar(&flags.JSONLog, "json", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	_ = fs.Parse(args)
	return flags
}

// Params builds the operation parameters from the flags
func (f *CLIFlags) Params() core.Params {
	identifier := f.Identifier
	if identifier == "" {
		identifier = f.DrugName
	}

	switch f.Operation {
	case core.OpSearchShortages, core.OpSearchRecalls:
		return core.Params{"drug_name": f.DrugName, "limit": f.Limit}
	case core.OpSearchAdverseEvents, core.OpSearchSeriousAdverseEvents:
		return core.Params{"drug_name": f.DrugName, "limit": f.Limit, "detailed": f.Detailed}
	case core.OpGetLabelInfo, core.OpGetMedicationProfile:
		return core.Params{"drug_identifier": identifier, "identifier_type": f.IdentifierType}
	case core.OpAnalyzeTrends:
		return core.Params{"drug_name": f.DrugName, "months_back": f.MonthsBack}
	case core.OpBatchAnalyze:
		var names []string
		if f.DrugList != "" {
			names = strings.Split(f.DrugList, ",")
			for i, name := range names {
				names[i] = strings.TrimSpace(name)
			}
		}
		return core.Params{"drug_list": names, "include_trends": f.IncludeTrends}
	default:
		return core.Params{}
	}
}

// BuildCLIContainer creates and configures a dependency injection container for the query application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideEngine(container); err != nil {
		return nil, err
	}

	// Register CLI frontend
	if err := container.Provide(func(
		dispatcher *core.Dispatcher,
		logger *zap.Logger,
		flags *CLIFlags,
	) *frontend.CliFrontend {
		return frontend.NewCliFrontend(dispatcher, logger, os.Stdout, flags.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// A single query never outlives the process
	v.Set("server.frontend", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cache.type", "memory")
	v.Set("cache.cleanup_frequency", "0s")

	// Upstream settings
	v.Set("openfda.base_url", flags.BaseURL)
	v.Set("openfda.timeout", flags.Timeout)
	apiKey := flags.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENFDA_API_KEY")
	}
	v.Set("openfda.api_key", apiKey)

	return config.NewFromViper(v)
}

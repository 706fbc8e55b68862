package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zen-systems/routegate/pkg/analyzer"
	"github.com/zen-systems/routegate/pkg/capability"
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/metadata"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/signal"
	"github.com/zen-systems/routegate/pkg/telemetry"
	"go.uber.org/zap"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "routegate",
		Short: "Tiered prompt analysis and routing core",
		Long: `Routegate analyzes prompts through a confidence-gated cascade of
	heuristic, classifier and profiler layers, decides on-device (L0)
	eligibility, and emits an auditable routing decision across the
	L0-L3 execution tiers.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to analysis tables file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log analysis internals to stderr")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(tablesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	var contextFlag string
	var offlineFlag bool
	var thoroughFlag bool
	var noEgressFlag bool
	var noDeviceFlag bool
	var requestTier string
	var clientTier string
	var clientExpert string

	cmd := &cobra.Command{
		Use:   "analyze [prompt]",
		Short: "Analyze a prompt and print the routing metadata",
		Long: `Runs the full analysis cascade on the prompt and prints the terminal
	RoutingMetadata record as JSON.

	Use --client-tier to simulate an untrusted client-side routing proposal;
	the trust arbiter reconciles it against the server decision and stamps
	the override cause when they disagree.

	The exit code is non-zero when an analysis layer failed, even though a
	degraded routing decision is still printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			classifier, err := capability.NewClassifier(cfg)
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}
			profiler, err := capability.NewProfiler(cfg)
			if err != nil {
				return fmt.Errorf("failed to create profiler: %w", err)
			}

			store := config.NewStore(cfg.Analysis)
			engine := analyzer.New(store, classifier, profiler, telemetry.DefaultProvider(), logger)

			prefs := signal.Preferences{
				OfflineMode:         offlineFlag,
				DataEgressPermitted: !noEgressFlag,
				L0DeviceAvailable:   !noDeviceFlag,
			}
			if thoroughFlag {
				prefs.Quality = schema.QualityThorough
			}
			if requestTier != "" {
				tier, err := schema.ParseTier(requestTier)
				if err != nil {
					return err
				}
				prefs.RequestedTier = tier
			}

			req := analyzer.Request{
				Prompt:  args[0],
				Context: contextFlag,
				Prefs:   prefs,
			}
			if clientTier != "" {
				tier, err := schema.ParseTier(clientTier)
				if err != nil {
					return err
				}
				req.ClientDecision = &metadata.RoutingDecision{
					Primary: metadata.RoutePath{Tier: tier, Expert: clientExpert},
					Origin:  metadata.OriginClient,
				}
			}

			md, err := engine.Analyze(context.Background(), req)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(md, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))

			if len(md.Failures) > 0 {
				return fmt.Errorf("analysis degraded: %d layer failure(s)", len(md.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextFlag, "context", "", "conversation context preceding the prompt")
	cmd.Flags().BoolVar(&offlineFlag, "offline", false, "device is offline; force on-device routing")
	cmd.Flags().BoolVar(&thoroughFlag, "thorough", false, "user prefers thorough analysis over speed")
	cmd.Flags().BoolVar(&noEgressFlag, "no-egress", false, "data may not leave the device")
	cmd.Flags().BoolVar(&noDeviceFlag, "no-device", false, "no on-device model is available")
	cmd.Flags().StringVar(&requestTier, "request-tier", "", "user-requested execution tier (L0-L3)")
	cmd.Flags().StringVar(&clientTier, "client-tier", "", "client-proposed execution tier (L0-L3)")
	cmd.Flags().StringVar(&clientExpert, "client-expert", "", "client-proposed expert id")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [analysis.yaml]",
		Short: "Validate an analysis tables file",
		Long:  "Loads and validates analysis tables without running an analysis.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadAnalysisConfig(args[0]); err != nil {
				return err
			}
			fmt.Println("Analysis tables are valid.")
			return nil
		},
	}
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Show the active analysis tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a := cfg.Analysis

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DOMAIN\tKEYWORDS\tEXPERTS (L0-L3)")

			var domains []string
			for name := range a.Domains {
				domains = append(domains, name)
			}
			sort.Strings(domains)

			for _, name := range domains {
				experts := make([]string, 0, len(schema.Tiers))
				for _, tier := range schema.Tiers {
					experts = append(experts, a.ExpertFor(name, tier))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name,
					strings.Join(a.Domains[name], ", "),
					strings.Join(experts, ", "))
			}

			fmt.Fprintln(w)
			fmt.Fprintf(w, "STOP CONFIDENCE\t%.2f\n", a.Thresholds.StopConfidence)
			fmt.Fprintf(w, "L0 COMPLEXITY CEILING\t%.2f\n", a.Thresholds.L0ComplexityCeiling)
			fmt.Fprintf(w, "L2 COMPLEXITY FLOOR\t%.2f\n", a.Thresholds.L2ComplexityFloor)
			fmt.Fprintf(w, "L3 COMPLEXITY FLOOR\t%.2f\n", a.Thresholds.L3ComplexityFloor)
			fmt.Fprintf(w, "LAYER BUDGETS\t%dms / %dms\n", a.Budgets.Layer2Ms, a.Budgets.Layer3Ms)

			return w.Flush()
		},
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithAnalysisFile(configFile)
	}
	return config.Load()
}

func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

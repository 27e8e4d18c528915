package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

var (
	settingsModel  string
	settingsAPIKey string
	settingsRemote bool
)

// readSecret reads an API key from the terminal. Tests replace it.
var readSecret = readPassword

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in the config file.

Environment variables (RAGCORE_<SECTION>_<KEY>) override stored values at
run time but are not shown here.`,
	RunE: runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Validates and stores a setting, e.g.

  ragcore settings set rag.top_k 8
  ragcore settings set llm.timeout 90s
  ragcore settings set index.type ivf`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding <provider>",
	Short: "Configure the embedding provider",
	Long: `Configure the embedding provider: local, ollama or openai.

Changing the embedding model changes the vector size; clear and re-ingest the
index afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm <provider>",
	Short: "Configure a generation backend",
	Long: `Configure the local generation backend (ollama), or with --remote the
fallback backend (ollama, openai or anthropic).`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsLLM,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and ping the configured backends",
	Args:  cobra.NoArgs,
	RunE:  runSettingsValidate,
}

func init() {
	for _, c := range []*cobra.Command{settingsEmbeddingCmd, settingsLLMCmd} {
		c.Flags().StringVar(&settingsModel, "model", "", "model name (default depends on provider)")
		c.Flags().StringVar(&settingsAPIKey, "api-key", "", "API key (prompted when required and omitted)")
	}
	settingsLLMCmd.Flags().BoolVar(&settingsRemote, "remote", false, "configure the remote fallback backend")

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	out := cmd.OutOrStdout()
	section := ""
	for _, name := range settingsService.Keys() {
		if prefix, _, ok := strings.Cut(name, "."); ok && prefix != section {
			if section != "" {
				fmt.Fprintln(out)
			}
			section = prefix
			fmt.Fprintf(out, "[%s]\n", section)
		}
		value, _ := settingsService.GetValue(name)
		fmt.Fprintf(out, "  %s = %s\n", name, displayValue(name, value))
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	value, ok := settingsService.GetValue(args[0])
	if !ok {
		return fmt.Errorf("unknown setting %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), displayValue(args[0], value))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	if err := settingsService.SetValue(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	value, _ := settingsService.GetValue(args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], displayValue(args[0], value))
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	provider := domain.AIProvider(args[0])
	apiKey, err := apiKeyFor(cmd, provider)
	if err != nil {
		return err
	}
	if err := settingsService.SetEmbeddingProvider(provider, settingsModel, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedding: %s %s (%d dimensions)\n",
		settings.Embedding.Provider.Description(), settings.Embedding.Model, settings.Embedding.Dimensions)
	return nil
}

func runSettingsLLM(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	provider := domain.AIProvider(args[0])
	apiKey, err := apiKeyFor(cmd, provider)
	if err != nil {
		return err
	}
	if err := settingsService.SetGenerationProvider(settingsRemote, provider, settingsModel, apiKey); err != nil {
		return fmt.Errorf("failed to configure generation backend: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	slot, llm := "Local", settings.Generation.Local
	if settingsRemote {
		slot, llm = "Remote", settings.Generation.Remote
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s model: %s %s\n", slot, llm.Provider.Description(), llm.Model)
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
	return nil
}

// apiKeyFor returns --api-key, prompting for it when the provider needs one.
func apiKeyFor(cmd *cobra.Command, provider domain.AIProvider) (string, error) {
	if settingsAPIKey != "" || !provider.RequiresAPIKey() {
		return settingsAPIKey, nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enter %s API key: ", provider.Description())
	key := readSecret()
	fmt.Fprintln(cmd.OutOrStdout())
	if key == "" {
		return "", fmt.Errorf("API key is required for %s", provider)
	}
	return key, nil
}

func displayValue(name string, value any) string {
	key, ok := domain.LookupSettingKey(name)
	if ok && key.Secret {
		s, _ := value.(string)
		if s == "" {
			return "(not set)"
		}
		return maskAPIKey(s)
	}
	return fmt.Sprint(key.Persisted(value))
}

func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

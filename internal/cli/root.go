package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"convd/internal/pyenv"
)

// Config carries the CLI-wide settings resolved from flags and env.
type Config struct {
	Python string
	LogLvl string
}

// Main runs the convctl command tree and returns the process exit code.
func Main() int {
	cfg := &Config{
		Python: envStr("CONVD_PYTHON", ""),
		LogLvl: envStr("CONVD_LOG_LEVEL", "info"),
	}
	root := buildRootCmdWith(cfg)
	if err := root.Execute(); err != nil {
		errl("%v", err)
		return 1
	}
	return 0
}

// buildRootCmdWith constructs the Cobra command tree wired to the fn* actions.
func buildRootCmdWith(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "convctl",
		Short:         "Drive mlx_lm model conversion from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags -> Config
	root.PersistentFlags().String("python", cfg.Python, "Interpreter path (defaults CONVD_PYTHON or system python3)")
	root.PersistentFlags().String("log-level", cfg.LogLvl, "Log level: debug|info|warn|error (defaults CONVD_LOG_LEVEL or info)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if f := cmd.InheritedFlags().Lookup("python"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.Python = v
			}
		}
		if f := cmd.InheritedFlags().Lookup("log-level"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.LogLvl = v
			}
		}
		SetLogLevel(cfg.LogLvl)
	}

	checkCmd := &cobra.Command{
		Use:     "check",
		Short:   "Validate that the interpreter has the required packages",
		Example: "  convctl check --python /opt/venvs/mlx/.venv/bin/python",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnCheck(cmd.Context(), cfg)
		},
	}

	setupCmd := &cobra.Command{
		Use:     "setup <dir>",
		Short:   "Create <dir>/.venv and install the required packages",
		Example: "  convctl setup ~/mlx",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnSetup(cmd.Context(), cfg, args[0])
		},
	}

	var (
		hfPath     string
		uploadRepo string
		quant      string
		upload     bool
	)
	convertCmd := &cobra.Command{
		Use:     "convert",
		Short:   "Convert a Hugging Face model repo",
		Example: "  convctl convert --hf-path org/model-a -q 4bit\n  convctl convert --hf-path org/model-a --upload --upload-repo me/model-a-mlx",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnConvert(cmd.Context(), cfg, hfPath, uploadRepo, quant, upload)
		},
	}
	convertCmd.Flags().StringVar(&hfPath, "hf-path", "", "Source Hugging Face repo (required)")
	convertCmd.Flags().StringVar(&uploadRepo, "upload-repo", "", "Destination repo for upload")
	convertCmd.Flags().StringVarP(&quant, "quantization", "q", "none", "Quantization: none|4bit|8bit")
	convertCmd.Flags().BoolVar(&upload, "upload", false, "Upload the converted model")
	_ = convertCmd.MarkFlagRequired("hf-path")

	installCmd := &cobra.Command{
		Use:   "install-cmd",
		Short: "Print the pip install command for the required packages",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(pyenv.InstallCommand)
		},
	}

	root.AddCommand(checkCmd, setupCmd, convertCmd, installCmd)
	return root
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/research-chat/pkg/app"
	"github.com/mikeboe/research-chat/pkg/config"
	"github.com/mikeboe/research-chat/pkg/logging"
	"github.com/mikeboe/research-chat/pkg/prompt"
	"github.com/mikeboe/research-chat/pkg/render"
)

var (
	topic    string
	model    string
	depth    string
	language string
	persona  string
	critical bool
	verbose  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "research-helper",
		Short: "A terminal chat with an autonomous research agent",
		Long:  `research-helper searches arXiv, reads papers and writes reports or LaTeX papers on the topics you ask about.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			console := io.Discard
			if verbose {
				console = os.Stderr
			}
			_, logCloser := logging.Setup(logging.Options{File: cfg.LogFile, Console: console})
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			md, err := render.NewMarkdown("auto", 100)
			if err != nil {
				slog.Warn("Markdown rendering disabled", "error", err)
			}

			opts := prompt.Options{
				Model:        prompt.ModelChoice(model),
				Depth:        prompt.Depth(depth),
				Language:     prompt.Language(language),
				Persona:      prompt.Persona(persona),
				CriticalMode: critical,
			}.Normalize()

			r, err := newREPL(ctx, a.Chat, a.Archive, opts, cmd.OutOrStdout(), md)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("topic") {
				if strings.TrimSpace(topic) == "" {
					return fmt.Errorf("--topic flag provided but empty")
				}
				_, err := r.handle(ctx, prompt.QuickStartRequest(topic))
				return err
			}
			return r.loop(ctx, bufio.NewReader(cmd.InOrStdin()))
		},
	}

	defaults := prompt.DefaultOptions()
	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "Research a topic once and exit")
	rootCmd.Flags().StringVarP(&model, "model", "m", string(defaults.Model), "Model: pro or fast")
	rootCmd.Flags().StringVarP(&depth, "depth", "d", string(defaults.Depth), "Research depth: overview, standard or deep")
	rootCmd.Flags().StringVarP(&language, "language", "l", string(defaults.Language), "Output language")
	rootCmd.Flags().StringVarP(&persona, "persona", "p", "professor", "Persona: professor, journalist, skeptic, eli5 or none")
	rootCmd.Flags().BoolVar(&critical, "critical", false, "Add a SWOT analysis for every paper")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print logs to stderr")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

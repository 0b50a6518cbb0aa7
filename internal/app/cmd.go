package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/interne/internal/config"
	"github.com/hitoshi/interne/internal/entry"
	"github.com/hitoshi/interne/internal/importer"
	"github.com/hitoshi/interne/internal/model"
)

// Command はアプリケーションのサブコマンド名を表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動する。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandWorker はクリーンアップワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandCreateUser はユーザーを作成し招待コードを表示する。
	CommandCreateUser Command = "create-user"
	// CommandImport は旧形式のJSONファイルを取り込む。
	CommandImport Command = "import"
	// CommandImportFeed はRSS/Atomフィードを取り込む。
	CommandImportFeed Command = "import-feed"
	// CommandExport はユーザーのエントリをJSONで書き出す。
	CommandExport Command = "export"
)

// NewRootCommand はサブコマンドを登録したルートコマンドを返す。
// ログはlogOutに、コマンドの結果はcmd.OutOrStdout()に出力する。
func NewRootCommand(logOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "interne",
		Short:         "Spaced-repetition bookmark manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, logOut, runServe)
		},
	}

	root.AddCommand(
		serveCmd(logOut),
		workerCmd(logOut),
		migrateCmd(logOut),
		healthcheckCmd(),
		createUserCmd(logOut),
		importCmd(logOut),
		importFeedCmd(logOut),
		exportCmd(logOut),
	)
	return root
}

// withConfig は設定を読み込み、SIGINT/SIGTERMでキャンセルされるコンテキストでfnを実行する。
func withConfig(cmd *cobra.Command, logOut io.Writer, fn func(ctx context.Context, cfg *config.Config) error) error {
	cfg, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application", slog.String("command", cmd.Name()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, cfg)
}

// withComponents は依存関係を組み立ててfnを実行し、終了時にDBを閉じる。
func withComponents(cmd *cobra.Command, logOut io.Writer, fn func(ctx context.Context, c *components) error) error {
	return withConfig(cmd, logOut, func(ctx context.Context, cfg *config.Config) error {
		c, err := openComponents(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, c)
	})
}

func serveCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandServe),
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, logOut, runServe)
		},
	}
}

func workerCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandWorker),
		Short: "Periodically delete expired sessions and unused tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, logOut, runWorker)
		},
	}
}

func migrateCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, logOut, func(_ context.Context, cfg *config.Config) error {
				return runMigrate(cfg)
			})
		},
	}
}

// healthcheckCmd は設定の読み込みを行わない軽量コマンド。
func healthcheckCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check that the local server answers /health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = config.Default().ServerPort
				}
				url = "http://localhost:" + port
			}
			return runHealthcheck(cmd.Context(), url)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "server base URL (default http://localhost:$SERVER_PORT)")
	return cmd
}

func createUserCmd(logOut io.Writer) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   string(CommandCreateUser) + " <name>",
		Short: "Create a user and print the invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, logOut, func(ctx context.Context, c *components) error {
				u, err := c.auth.CreateUser(ctx, args[0], email)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "user_id: %s\n", u.ID)
				fmt.Fprintf(out, "invite_code: %s\n", u.InviteCode)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func importCmd(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandImport) + " <file> <user_id>",
		Short: "Import entries from a legacy JSON export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			return withComponents(cmd, logOut, func(ctx context.Context, c *components) error {
				report, err := c.importer.ImportLegacy(ctx, f, args[1])
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func importFeedCmd(logOut io.Writer) *cobra.Command {
	var (
		duration int
		interval string
	)

	cmd := &cobra.Command{
		Use:   string(CommandImportFeed) + " <feed_url> <user_id>",
		Short: "Import the items of an RSS/Atom feed as entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			iv, err := model.ParseInterval(interval)
			if err != nil {
				return err
			}
			opts := importer.FeedOptions{Duration: duration, Interval: iv}

			return withComponents(cmd, logOut, func(ctx context.Context, c *components) error {
				report, err := c.importer.ImportFeed(ctx, args[0], args[1], opts)
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&duration, "duration", 1, "cooldown length for imported entries")
	cmd.Flags().StringVar(&interval, "interval", string(model.IntervalWeeks), "cooldown unit (hours|days|weeks|months|years)")
	return cmd
}

func exportCmd(logOut io.Writer) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   string(CommandExport) + " <user_id>",
		Short: "Write the user's entries as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, logOut, func(ctx context.Context, c *components) error {
				now := time.Now()
				doc, err := c.entry.Export(ctx, args[0], now)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("failed to create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				return writeExport(w, doc)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func writeExport(w io.Writer, doc *entry.ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// printReport は取り込み結果を1行ずつ出力する。
func printReport(w io.Writer, r *importer.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "imported: %d\n", r.Imported)
	fmt.Fprintf(w, "skipped: %d\n", len(r.Skipped))
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  #%d %s: %s\n", s.Index, s.URL, s.Reason)
	}
}

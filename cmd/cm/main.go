package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"commline/internal/config"
	"commline/internal/db"
	"commline/internal/domain"
	"commline/internal/engine"
	"commline/internal/events"
	"commline/internal/kvstore"
	"commline/internal/migrate"
	"commline/internal/server"
	"commline/internal/social"
	"commline/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "cm",
	Short: "Commline CLI",
	Long: `Commline keeps a local commission marketplace collection in sync.
Core concepts:
- Workspace: your .commline directory holding the database; config lives in commline.yml.
- Commission: a unit of requested or fulfilled creative work.
- Lifecycle: pending -> ongoing -> unclaimed -> completed, with cancellation from ongoing;
  cancelled and completed are final.
- Identity: records without an id are keyed by title-artist, so the same commission
  submitted twice merges instead of duplicating.
- Moderation: follow, like, block, not-interested and report are per-viewer state;
  hiding a commission never touches anyone else's copy.
- Event log: diary of changes, view with 'cm log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("COMMLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("viewer", "", "viewer name (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("viewer", rootCmd.PersistentFlags().Lookup("viewer"))
}

func registerCommands() {
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(acceptCmd())
	rootCmd.AddCommand(deliverCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(likeCmd())
	rootCmd.AddCommand(followCmd())
	rootCmd.AddCommand(unfollowCmd())
	rootCmd.AddCommand(blockCmd())
	rootCmd.AddCommand(notInterestedCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// withEngine opens the workspace database, runs migrations and hands a ready
// engine to fn.
func withEngine(ctx context.Context, fn func(ctx context.Context, e engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if viewer := viper.GetString("viewer"); viewer != "" {
		cfg.Viewer.Name = viewer
	}
	kv := kvstore.NewSQLite(conn)
	st := store.New(kv, cfg.SeedCommissions())
	soc := social.New(kv)
	soc.SeedLikeCounts = cfg.SeedLikeCounts()
	ev := events.Writer{DB: conn}
	return fn(ctx, engine.New(st, soc, ev, cfg))
}

func submitCmd() *cobra.Command {
	var opts engine.SubmitOptions
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a commission request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Submit(ctx, opts)
				if err != nil {
					return err
				}
				return printCommission(c, e, ctx)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "commission title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what is being commissioned")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.Artist, "artist", "", "fulfilling artist")
	cmd.Flags().StringVar(&opts.ContactEmail, "contact", "", "contact email")
	cmd.Flags().StringVar(&opts.Date, "date", "", "display date")
	cmd.Flags().StringSliceVar(&opts.ReferencePhotos, "reference", nil, "reference photo refs")
	cmd.Flags().BoolVar(&opts.Direct, "direct", false, "directly-agreed flow (starts ongoing)")
	cmd.Flags().Float64Var(&opts.AgreedPrice, "price", 0, "agreed price (required with --direct)")
	return cmd
}

func listCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible commissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				list, err := e.Visible(ctx)
				if err != nil {
					return err
				}
				if status != "" {
					want, ok := domain.NormalizeStatus(status)
					if !ok {
						return fmt.Errorf("unknown status %q", status)
					}
					filtered := list[:0]
					for _, c := range list {
						if c.Status == want {
							filtered = append(filtered, c)
						}
					}
					list = filtered
				}
				return printCommissionList(ctx, e, list)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <identity>",
		Short: "Show a commission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, ok, err := e.Store.Find(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("commission %s not found", args[0])
				}
				return printCommission(c, e, ctx)
			})
		},
	}
	return cmd
}

func acceptCmd() *cobra.Command {
	var artist string
	cmd := &cobra.Command{
		Use:   "accept <identity>",
		Short: "Accept a pending commission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Accept(ctx, args[0], artist)
				if err != nil {
					return err
				}
				return printCommission(c, e, ctx)
			})
		},
	}
	cmd.Flags().StringVar(&artist, "artist", "", "fulfilling artist")
	return cmd
}

func deliverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deliver <identity>",
		Short: "Mark a commission delivered, awaiting payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.MarkDelivered(ctx, args[0])
				if err != nil {
					return err
				}
				return printCommission(c, e, ctx)
			})
		},
	}
}

func completeCmd() *cobra.Command {
	var opts engine.CompleteOptions
	cmd := &cobra.Command{
		Use:   "complete <identity>",
		Short: "Complete a commission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Complete(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printCommission(c, e, ctx)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "completion notes")
	cmd.Flags().Float64Var(&opts.AgreedPrice, "price", 0, "agreed price")
	cmd.Flags().StringSliceVar(&opts.ProofPhotos, "proof", nil, "proof-of-payment photo refs")
	return cmd
}

func cancelCmd() *cobra.Command {
	var reason, confirmation string
	cmd := &cobra.Command{
		Use:   "cancel <identity>",
		Short: "Cancel an ongoing commission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirmation == "" {
				fmt.Printf("Type %q to proceed: ", engine.ConfirmCancellation)
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				confirmation = strings.TrimSpace(line)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Cancel(ctx, args[0], reason, confirmation)
				if err != nil {
					return err
				}
				return printCommission(c, e, ctx)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	cmd.Flags().StringVar(&confirmation, "confirm", "", "confirmation phrase")
	return cmd
}

func likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <identity>",
		Short: "Toggle like on a commission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				liked, count, err := e.ToggleLike(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"identity": args[0], "liked": liked, "likes": count})
			})
		},
	}
}

func followCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <artist>",
		Short: "Follow an artist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetFollowing(ctx, args[0], true)
			})
		},
	}
}

func unfollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <artist>",
		Short: "Unfollow an artist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetFollowing(ctx, args[0], false)
			})
		},
	}
}

func blockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <identity>",
		Short: "Block a commission and hide it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Block(ctx, args[0])
			})
		},
	}
}

func notInterestedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "not-interested <identity>",
		Short: "Hide a commission from your lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.NotInterested(ctx, args[0])
			})
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <identity>",
		Short: "Report a commission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Report(ctx, args[0])
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.Events.Tail(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				t := newTable()
				t.AppendHeader(table.Row{"TS", "TYPE", "ENTITY", "ACTOR"})
				for _, ev := range evts {
					t.AppendRow(table.Row{ev.TS, ev.Type, ev.EntityID, ev.ActorID})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "max events")
	log.AddCommand(tail)
	return log
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default commline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e})
				if err != nil {
					return err
				}
				server.StartWebhookDispatcher(ctx, e)
				fmt.Println("listening on", addr)
				return http.ListenAndServe(addr, handler)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7680", "listen address")
	return cmd
}

// --- output helpers ---

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return printJSON(v)
	}
	t := newTable()
	for k, val := range m {
		t.AppendRow(table.Row{k, fmt.Sprint(val)})
	}
	fmt.Println(t.Render())
	return nil
}

func categoryLabel(e engine.Engine, category string) string {
	if category == "" {
		return ""
	}
	if e.Config == nil {
		return category
	}
	return fmt.Sprintf("%s (%s)", category, e.Config.IconFor(category))
}

func printCommission(c domain.Commission, e engine.Engine, ctx context.Context) error {
	if viper.GetBool("json") {
		return printJSON(c)
	}
	identity := domain.ResolveIdentity(c)
	t := newTable()
	t.AppendRow(table.Row{"identity", identity})
	t.AppendRow(table.Row{"title", c.Title})
	t.AppendRow(table.Row{"artist", c.Artist})
	t.AppendRow(table.Row{"category", categoryLabel(e, c.Category)})
	t.AppendRow(table.Row{"status", string(c.Status)})
	t.AppendRow(table.Row{"date", c.Date})
	if c.AgreedPrice != nil {
		t.AppendRow(table.Row{"price", fmt.Sprintf("%.2f", *c.AgreedPrice)})
	}
	if c.CancelledAt != "" {
		t.AppendRow(table.Row{"cancelled at", c.CancelledAt})
		t.AppendRow(table.Row{"reason", c.CancellationReason})
	}
	if c.CompletedAt != "" {
		t.AppendRow(table.Row{"completed at", c.CompletedAt})
	}
	t.AppendRow(table.Row{"likes", e.Social.LikeCount(ctx, identity)})
	fmt.Println(t.Render())
	return nil
}

func printCommissionList(ctx context.Context, e engine.Engine, list []domain.Commission) error {
	if viper.GetBool("json") {
		return printJSON(list)
	}
	t := newTable()
	t.AppendHeader(table.Row{"IDENTITY", "TITLE", "ARTIST", "CATEGORY", "STATUS", "LIKES"})
	for _, c := range list {
		identity := domain.ResolveIdentity(c)
		t.AppendRow(table.Row{identity, c.Title, c.Artist, categoryLabel(e, c.Category), string(c.Status), e.Social.LikeCount(ctx, identity)})
	}
	fmt.Println(t.Render())
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/classify"
	"gigline/internal/clock"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
	"gigline/internal/server"
	"gigline/internal/urgency"
)

var rootCmd = &cobra.Command{
	Use:   "gl",
	Short: "Gigline CLI",
	Long: `Gigline is a peer-to-peer task marketplace.
- Post: put a mission on the board with a reward; posting itself earns a small credit.
- Feed: browse open missions from other actors, filter and sort, watch deadlines count down.
- Accept: bookmark up to three missions into your working set; the mission stays open for others.
- Offers: open a negotiation at or above the reward, then renegotiate freely; the poster hires one bidder.
- Submit: deliver your work; a classifier checks it against the brief and the engine settles reward, penalty and trust.
- Event log: diary of changes, view with 'gl log tail'.`,
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
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("memory", false, "use an in-memory database for this process")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("memory", rootCmd.PersistentFlags().Lookup("memory"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(postCmd())
	rootCmd.AddCommand(feedCmd())
	rootCmd.AddCommand(acceptCmd())
	rootCmd.AddCommand(acceptedCmd())
	rootCmd.AddCommand(withdrawCmd())
	rootCmd.AddCommand(mineCmd())
	rootCmd.AddCommand(offerCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialise a workspace with a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("workspace initialised:", path)
			return nil
		},
	}
}

func postCmd() *cobra.Command {
	var (
		title, category, description, deadline string
		tags, days                             []string
		timeStart, timeEnd                     string
		reward                                 int64
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.CreatePost(ctx, engine.PostOptions{
					Title:        title,
					Category:     domain.Category(category),
					Description:  description,
					Tags:         tags,
					RewardAmount: reward,
					Deadline:     optional(deadline),
					Days:         days,
					TimeStart:    timeStart,
					TimeEnd:      timeEnd,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "mission title")
	cmd.Flags().StringVar(&category, "category", "other", "category: written_work|project_work|guidance|other")
	cmd.Flags().StringVar(&description, "description", "", "mission brief")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().Int64Var(&reward, "reward", 0, "reward amount")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline, RFC3339")
	cmd.Flags().StringSliceVar(&days, "day", nil, "guidance availability day (repeatable)")
	cmd.Flags().StringVar(&timeStart, "time-start", "", "guidance window start, e.g. 18:00")
	cmd.Flags().StringVar(&timeEnd, "time-end", "", "guidance window end, e.g. 20:00")
	return cmd
}

func feedCmd() *cobra.Command {
	var category, tag, search, sort string
	var minReward int64
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Browse the open mission feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				missions, err := e.ListFeed(ctx, viper.GetString("actor-id"), repo.FeedFilter{
					Category:   domain.Category(category),
					Tag:        tag,
					MinReward:  minReward,
					SearchText: search,
				}, domain.SortOrder(sort))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(missions)
				}
				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Reward", "Deadline", "Tags"})
				for _, m := range missions {
					tw.AppendRow(table.Row{
						m.ID, m.Title, m.Category, m.RewardAmount,
						deadlineCell(now, m.Deadline), strings.Join(m.Tags, ","),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().Int64Var(&minReward, "min-reward", 0, "minimum reward")
	cmd.Flags().StringVar(&search, "search", "", "search title and tags")
	cmd.Flags().StringVar(&sort, "sort", "", "sort: reward_desc|reward_asc|date_desc|deadline_asc")
	return cmd
}

func acceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <mission-id>",
		Short: "Accept a mission into your working set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				am, err := e.AcceptMission(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(am)
			})
		},
	}
}

func acceptedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accepted",
		Short: "List your working set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.ListAccepted(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Reward", "Urgency", "Accepted"})
				for _, am := range items {
					tw.AppendRow(table.Row{
						am.Mission.ID, am.Mission.Title, am.Mission.RewardAmount,
						deadlineCell(now, am.Deadline), am.AcceptedAt,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <mission-id>",
		Short: "Withdraw a mission from your working set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.RemoveFromAccepted(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("withdrawn:", args[0])
				return nil
			})
		},
	}
}

func mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your posted missions and their offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				missions, err := e.ListMyPosts(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(missions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Reward", "Offers"})
				for _, m := range missions {
					tw.AppendRow(table.Row{m.ID, m.Title, m.Status, m.RewardAmount, len(m.Offers)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func offerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "offer", Short: "Negotiate on missions"}
	cmd.AddCommand(offerProposeCmd())
	cmd.AddCommand(offerRenegotiateCmd())
	cmd.AddCommand(offerAcceptCmd())
	cmd.AddCommand(offerDeclineCmd())
	return cmd
}

func offerProposeCmd() *cobra.Command {
	var amount int64
	var message string
	cmd := &cobra.Command{
		Use:   "propose <mission-id>",
		Short: "Open a negotiation at or above the posted reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var bid *int64
				if cmd.Flags().Changed("amount") {
					bid = &amount
				}
				o, err := e.ProposeOffer(ctx, args[0], viper.GetString("actor-id"), bid, message)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "bid amount (defaults to the posted reward)")
	cmd.Flags().StringVar(&message, "message", "", "message to the poster")
	return cmd
}

func offerRenegotiateCmd() *cobra.Command {
	var amount int64
	var message string
	cmd := &cobra.Command{
		Use:   "renegotiate <mission-id> <offer-id>",
		Short: "Revise your standing bid, any positive amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.RenegotiateOffer(ctx, args[0], args[1], viper.GetString("actor-id"), amount, message)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "revised bid amount")
	cmd.Flags().StringVar(&message, "message", "", "message to the poster")
	return cmd
}

func offerAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <mission-id> <offer-id>",
		Short: "Hire the offer's bidder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.AcceptOffer(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func offerDeclineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decline <mission-id> <offer-id>",
		Short: "Decline an offer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.DeclineOffer(ctx, args[0], args[1], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("declined:", args[1])
				return nil
			})
		},
	}
}

func submitCmd() *cobra.Command {
	var file, mime string
	cmd := &cobra.Command{
		Use:   "submit <mission-id>",
		Short: "Submit work for verification and settlement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				result, err := e.SubmitWork(ctx, args[0], viper.GetString("actor-id"), classify.Artifact{Bytes: data, MimeType: mime})
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "deliverable file")
	cmd.Flags().StringVar(&mime, "mime", "", "deliverable mime type")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show balance and trust",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				acc, err := e.Account(cmd.Context(), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(acc)
			})
		},
	}
	cmd.AddCommand(accountLogCmd())
	cmd.AddCommand(accountTrustCmd())
	return cmd
}

func accountLogCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Recent balance movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				txs, err := e.Repo.ListTransactions(ctx, viper.GetString("actor-id"), limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(txs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	return cmd
}

func accountTrustCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Recent reputation adjustments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				entries, err := e.Repo.ListTrustEntries(ctx, viper.GetString("actor-id"), limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live countdowns for your working set, once per second",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actorID := viper.GetString("actor-id")
				w := &urgency.Watcher{
					Clock:  clock.Real{},
					Source: deadlineSource{engine: e, actorID: actorID},
					Sink: func(t urgency.Tick) {
						fmt.Printf("%s  %-8s  %s  %3.0f%%\n", t.MissionID, t.Tier, t.Label, t.ProgressPercent)
					},
				}
				err := w.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

type deadlineSource struct {
	engine  *engine.Engine
	actorID string
}

func (s deadlineSource) Deadlines(ctx context.Context) (map[string]*time.Time, error) {
	return s.engine.AcceptedDeadlines(ctx, s.actorID)
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Manage API keys"}
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())
	return cmd
}

func keysCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (secret shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				fmt.Println("id:    ", key.ID)
				fmt.Println("secret:", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys for the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked:", args[0])
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var limit int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.LatestEvents(ctx, limit, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max events")
	cmd.Flags().StringVar(&evtType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "filter by entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "filter by entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Open(viper.GetString("workspace"), viper.GetBool("memory"))
			if err != nil {
				return err
			}
			defer rt.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("GIGLINE_JWT_SECRET"),
				AllowLegacyActorHeader: os.Getenv("GIGLINE_ALLOW_ACTOR_HEADER") == "1",
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyActorHeader {
				return fmt.Errorf("GIGLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: rt.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gigline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	rt, err := app.Open(viper.GetString("workspace"), viper.GetBool("memory"))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Engine)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withEngine(ctx, func(ctx context.Context, e *engine.Engine) error {
		return fn(ctx, e.Repo)
	})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// deadlineCell renders the countdown label for a table cell.
func deadlineCell(now time.Time, deadline *string) string {
	if deadline == nil {
		return urgency.Classify(now, nil).Label
	}
	t, err := time.Parse(time.RFC3339, *deadline)
	if err != nil {
		return *deadline
	}
	return urgency.Classify(now, &t).Label
}

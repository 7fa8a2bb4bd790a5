package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	mcpapi "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/skillforge/skillbridge/internal/bridge"
	bridgeerrors "github.com/skillforge/skillbridge/internal/errors"
	"github.com/skillforge/skillbridge/internal/mcp"
	"github.com/skillforge/skillbridge/internal/skills"
)

func newSkillsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "skills",
		Aliases: []string{"skill"},
		Short:   "🧩 Inspect registry skills",
	}
	cmd.AddCommand(newSkillsListCommand(opts), newSkillsShowCommand(opts))
	return cmd
}

// listing is one row of `skills list`.
type listing struct {
	Tool string `json:"tool"`
	mcp.CatalogEntry
}

// toolCollector records registrations instead of serving them.
type toolCollector struct {
	names []string
}

func (c *toolCollector) AddTool(tool mcpapi.Tool, _ server.ToolHandlerFunc) {
	c.names = append(c.names, tool.Name)
}

type noHandlers struct{}

func (noHandlers) Handler(skills.Skill) server.ToolHandlerFunc { return nil }

func newSkillsListCommand(opts *rootOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "📋 List the active skills and the tool names agents see",
		Example: `  skillbridge skills list
  skillbridge skills list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err := cfg.ValidateRegistry(); err != nil {
				return err
			}

			stack, err := dialRegistry(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer stack.Close()

			collector := &toolCollector{}
			reconciler := bridge.NewReconciler(stack.registry, stack.cache, noHandlers{}, collector, bridge.Options{
				Concurrency:    cfg.MaxConcurrentFetches,
				CurrencySymbol: cfg.CurrencySymbol,
				Logger:         logger.Named("sync"),
			})
			if res := reconciler.Sync(cmd.Context()); res.Err != nil {
				return bridgeerrors.RegistryError(res.Err)
			}

			rows := listings(reconciler.Active(), collector.names)
			return renderListings(cmd.OutOrStdout(), rows, cfg.CurrencySymbol, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json)")
	return cmd
}

func newSkillsShowCommand(opts *rootOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:     "show <skill-id>",
		Short:   "🔍 Show one skill with fresh on-chain counters",
		Long: `Show one skill with fresh on-chain counters.

The derived tool name is the name the skill asks for. When another active
skill already claims it, serve registers this one with a "-<id>" suffix;
"skillbridge skills list" shows the names actually registered.`,
		Example: "  skillbridge skills show 7",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := new(big.Int).SetString(args[0], 10)
			if !ok || id.Sign() < 0 {
				return bridgeerrors.ValidationError(fmt.Errorf("invalid skill id %q", args[0]), "Skill ids are non-negative integers.")
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err := cfg.ValidateRegistry(); err != nil {
				return err
			}

			stack, err := dialRegistry(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer stack.Close()

			rec, err := stack.registry.Get(cmd.Context(), id)
			if err != nil {
				return bridgeerrors.RegistryError(err)
			}
			skill := stack.cache.Enrich(cmd.Context(), rec)

			return renderSkill(cmd.OutOrStdout(), skill, cfg.CurrencySymbol, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json)")
	return cmd
}

func listings(active []skills.Skill, names []string) []listing {
	entries := mcp.Catalog(active)
	rows := make([]listing, len(entries))
	for i, e := range entries {
		rows[i] = listing{CatalogEntry: e}
		if i < len(names) {
			rows[i].Tool = names[i]
		}
	}
	return rows
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func renderListings(w io.Writer, rows []listing, symbol, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table":
		if len(rows) == 0 {
			fmt.Fprintln(w, "No active skills in the registry.")
			return nil
		}
		if !isTerminal(w) {
			pterm.DisableStyling()
			defer pterm.EnableStyling()
		}
		data := pterm.TableData{{"TOOL", "ID", "NAME", "CATEGORY", "PRICE", "CALLS"}}
		for _, r := range rows {
			data = append(data, []string{
				r.Tool,
				r.SkillID,
				r.Name,
				r.Category,
				r.Price + " " + symbol,
				r.TotalCalls,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render()
	default:
		return bridgeerrors.ValidationError(fmt.Errorf("unknown output format: %s", format), "Use --output table or --output json.")
	}
}

func renderSkill(w io.Writer, s skills.Skill, symbol, format string) error {
	entry := mcp.Catalog([]skills.Skill{s})[0]

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			mcp.CatalogEntry
			Active bool `json:"isActive"`
		}{entry, s.IsActive})
	case "table":
		if !isTerminal(w) {
			pterm.DisableStyling()
			defer pterm.EnableStyling()
		}
		status := "active"
		if !s.IsActive {
			status = "inactive"
		}
		data := pterm.TableData{
			{"ID", entry.SkillID},
			{"Name", entry.Name},
			{"Derived tool", skills.DerivedToolName(s)},
			{"Status", status},
			{"Description", entry.Description},
			{"Category", entry.Category},
			{"Tags", strings.Join(entry.Tags, ", ")},
			{"Price", fmt.Sprintf("%s %s (%s wei)", entry.Price, symbol, entry.PricePerUse)},
			{"Calls", entry.TotalCalls},
			{"Creator", entry.Creator},
			{"Metadata", entry.MetadataURI},
		}
		return pterm.DefaultTable.WithData(data).WithWriter(w).Render()
	default:
		return bridgeerrors.ValidationError(fmt.Errorf("unknown output format: %s", format), "Use --output table or --output json.")
	}
}

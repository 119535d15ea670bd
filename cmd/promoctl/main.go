// Command promoctl creates and lists promo codes directly in the wallet
// database. It reads DB_PATH like the server does; --db overrides it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sakif/secretum/internal/config"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository/sqlite"
	"github.com/sakif/secretum/internal/service"
)

func main() {
	Execute()
}

var (
	dbPath string

	createCode     string
	createReward   int64
	createMaxUses  int
	createInactive bool

	listLimit  int
	listOffset int
)

var rootCmd = &cobra.Command{
	Use:          "promoctl",
	Short:        "Manage Secretum promo codes",
	SilenceUsage: true,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a promo code",
	Example: `  promoctl create --code WELCOME --reward 100 --max-uses 500
  promoctl create --code LATER --reward 50 --max-uses 10 --inactive`,
	RunE: runCreate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List promo codes with their usage, newest first",
	RunE:  runList,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database (default: $DB_PATH or data/secretum.db)")

	createCmd.Flags().StringVar(&createCode, "code", "", "Code users will enter (case-sensitive)")
	createCmd.Flags().Int64Var(&createReward, "reward", 0, "Balance credited on redemption")
	createCmd.Flags().IntVar(&createMaxUses, "max-uses", 1, "Total number of redemptions allowed")
	createCmd.Flags().BoolVar(&createInactive, "inactive", false, "Create the code switched off")
	_ = createCmd.MarkFlagRequired("code")
	_ = createCmd.MarkFlagRequired("reward")

	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of codes to show")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of codes to skip")

	rootCmd.AddCommand(createCmd, listCmd)
}

func runCreate(cmd *cobra.Command, _ []string) error {
	catalog, closeDB, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeDB()

	promo, err := catalog.Create(cmd.Context(), service.NewPromo{
		Code:    createCode,
		Reward:  createReward,
		MaxUses: createMaxUses,
		Active:  !createInactive,
	})
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Created %s: +%d, %d uses, %s",
		pterm.LightGreen(promo.Code), promo.RewardAmount, promo.MaxUses, activeLabel(promo.IsActive))
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	catalog, closeDB, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeDB()

	promos, err := catalog.List(cmd.Context(), listLimit, listOffset)
	if err != nil {
		return err
	}
	if len(promos) == 0 {
		pterm.Info.Println("No promo codes yet")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(promoTable(promos)).Render()
}

// openCatalog opens the database named by --db or the environment.
func openCatalog() (*service.PromoCatalog, func(), error) {
	path := dbPath
	if path == "" {
		st, err := config.LoadStore()
		if err != nil {
			return nil, nil, err
		}
		path = st.DBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqlite.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return service.NewPromoCatalog(db.PromoCodes(), logger), func() { db.Close() }, nil
}

// promoTable renders promos as pterm table rows, header first.
func promoTable(promos []model.PromoCode) pterm.TableData {
	data := pterm.TableData{{"Code", "Reward", "Uses", "Remaining", "Status", "Created"}}
	for i := range promos {
		p := &promos[i]
		data = append(data, []string{
			p.Code,
			strconv.FormatInt(p.RewardAmount, 10),
			fmt.Sprintf("%d/%d", p.CurrentUses, p.MaxUses),
			strconv.Itoa(p.Remaining()),
			activeLabel(p.IsActive),
			p.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return data
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

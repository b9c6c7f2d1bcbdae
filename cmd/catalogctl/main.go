package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/service"
)

const usage = `catalogctl - catalog maintenance

Commands:
  export          [-out file]    write a snapshot of the catalog
  import          -in file -yes  replace the catalog with a snapshot
  migrate-legacy  -yes           copy legacy local data into the store
  clear           -yes           delete every product and category
  hash-password   -password pw   print a bcrypt hash for admin_config
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	out := fs.String("out", "", "Output file (default: dated file name)")
	in := fs.String("in", "", "Snapshot file to import")
	yes := fs.Bool("yes", false, "Confirm a destructive operation")
	password := fs.String("password", "", "Password to hash")
	_ = fs.Parse(args)

	if cmd == "hash-password" {
		if err := hashPassword(*password); err != nil {
			fail(err)
		}
		return
	}

	switch cmd {
	case "export", "import", "migrate-legacy", "clear":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if cmd != "export" && !*yes {
		fail(fmt.Errorf("%s is destructive; re-run with -yes", cmd))
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	backend, err := repository.Open(cfg)
	if err != nil {
		fail(err)
	}
	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	catalog := service.NewCatalogService(backend.Gateway, nil)
	snapshots := service.NewSnapshotService(catalog, nil, cfg.Snapshot.LegacyDataPath)

	switch cmd {
	case "export":
		err = exportCatalog(ctx, catalog, snapshots, *out)
	case "import":
		err = importCatalog(ctx, snapshots, *in)
	case "migrate-legacy":
		err = migrateLegacy(ctx, snapshots)
	case "clear":
		err = snapshots.ClearAll(ctx)
		if err == nil {
			log.Warn().Msg("catalog cleared")
		}
	}
	if err != nil {
		fail(err)
	}
}

func exportCatalog(ctx context.Context, catalog *service.CatalogService, snapshots *service.SnapshotService, out string) error {
	if err := catalog.LoadAll(ctx); err != nil {
		return err
	}
	snap := snapshots.Export(ctx)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if out == "" {
		out = service.SnapshotFileName(time.Now())
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("file", out).Int("products", len(snap.Products)).Int("categories", len(snap.Categories)).Msg("catalog exported")
	return nil
}

func importCatalog(ctx context.Context, snapshots *service.SnapshotService, in string) error {
	if in == "" {
		return fmt.Errorf("-in is required")
	}
	raw, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	var doc models.Snapshot
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("snapshot is not valid JSON: %w", err)
	}
	result, err := snapshots.Import(ctx, &doc)
	if err != nil {
		return err
	}
	log.Info().Int("products", result.Products).Int("categories", result.Categories).Msg("catalog imported")
	return nil
}

func migrateLegacy(ctx context.Context, snapshots *service.SnapshotService) error {
	result, err := snapshots.MigrateLegacy(ctx)
	if err != nil {
		return err
	}
	if !result.Found {
		log.Info().Msg("no legacy data found")
		return nil
	}
	log.Info().
		Int("categories", result.CategoriesImported).
		Int("products", result.ProductsImported).
		Int("skipped", result.Skipped).
		Bool("cleared", result.Cleared).
		Msg("legacy data migrated")
	return nil
}

func hashPassword(password string) error {
	if err := service.ValidatePasswordSyntax(password); err != nil {
		return err
	}
	hash, err := service.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func fail(err error) {
	log.Error().Err(err).Msg("catalogctl failed")
	os.Exit(1)
}

// Command themectl administers the theme store and the per-project theme
// update pipeline: upload packages, inspect versions, rebuild snapshots,
// and check or apply updates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/loomsite/server/internal/config"
	"github.com/loomsite/server/internal/observability"
	"github.com/loomsite/server/internal/repository"
	"github.com/loomsite/server/internal/services"
)

const serviceVersion = "1.0.0"

var (
	projectName = pflag.String("name", "", "project name (create-project)")
	disablePrev = pflag.Bool("no-previews", false, "skip preview thumbnail generation on upload")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: themectl [flags] <command> [args]

Commands:
  upload <package.zip>            validate and install a theme package
  versions <themeId>              list every stored version of a theme
  info <themeId>                  show a theme summary
  rebuild <themeId>               rebuild the latest/ snapshot
  create-project --name N <themeId>  instantiate a project from a theme
  list-projects                   list all projects
  check <projectId>               check whether a theme update is available
  apply <projectId>               apply the current theme version to a project
  apply-all <themeId>             apply the update to every opted-in project
  updates <projectId> on|off      toggle a project's theme-update opt-out

Flags:
`)
	pflag.PrintDefaults()
}

func main() {
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, args); err != nil {
		observability.Errorf("themectl %s failed: %v", args[0], err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	telemetry, err := observability.Initialize(ctx, observability.NewConfig("loomsite-themectl", serviceVersion))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	var db repository.DBTX
	if cfg.UsePostgres() {
		observability.Info("Using PostgreSQL database")
		sqlDB, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("initialize PostgreSQL database: %w", err)
		}
		defer sqlDB.Close()
		db = observability.NewTraceDB(sqlDB)
	} else {
		observability.Info("Using SQLite database")
		sqlDB, err := repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("initialize SQLite database: %w", err)
		}
		defer sqlDB.Close()
		db = observability.NewTraceDB(sqlDB)
	}

	projectRepo := repository.NewProjectRepository(db)

	store, err := services.NewThemeStorageService(cfg.ThemeStorage.BasePath)
	if err != nil {
		return fmt.Errorf("initialize theme store: %w", err)
	}

	metrics, err := observability.NewEngineMetrics()
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}

	var previews *services.PreviewService
	if cfg.ThemeStorage.GeneratePreviews && !*disablePrev {
		previews = services.NewPreviewService()
	}

	snapshots := services.NewSnapshotService(store, metrics)
	uploads := services.NewThemeUploadService(store, snapshots, previews,
		services.NewChecksumService(), metrics, cfg.ThemeStorage.MaxPackageSizeMB)

	updater, err := services.NewThemeUpdateService(store, services.NewSettingsMergeService(),
		projectRepo, services.NewFileTemplateSource(), services.NewAssetCache(nil),
		metrics, cfg.ProjectStorage.BasePath)
	if err != nil {
		return fmt.Errorf("initialize update service: %w", err)
	}

	projectSvc, err := services.NewProjectService(store, projectRepo, cfg.ProjectStorage.BasePath)
	if err != nil {
		return fmt.Errorf("initialize project service: %w", err)
	}

	switch args[0] {
	case "upload":
		if len(args) < 2 {
			return fmt.Errorf("usage: themectl upload <package.zip>")
		}
		pkg, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		result, err := uploads.UploadPackage(ctx, pkg)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "versions":
		if len(args) < 2 {
			return fmt.Errorf("usage: themectl versions <themeId>")
		}
		versions, err := store.GetVersions(args[1])
		if err != nil {
			return err
		}
		return printJSON(versions)

	case "info":
		if len(args) < 2 {
			return fmt.Errorf("usage: themectl info <themeId>")
		}
		info, err := store.Info(args[1])
		if err != nil {
			return err
		}
		return printJSON(info)

	case "rebuild":
		if len(args) < 2 {
			return fmt.Errorf("usage: themectl rebuild <themeId>")
		}
		if err := snapshots.BuildSnapshot(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("snapshot rebuilt")
		return nil

	case "create-project":
		if len(args) < 2 || *projectName == "" {
			return fmt.Errorf("usage: themectl --name <name> create-project <themeId>")
		}
		project, err := projectSvc.CreateProjectFromTheme(ctx, *projectName, args[1])
		if err != nil {
			return err
		}
		return printJSON(project)

	case "list-projects":
		projects, err := projectRepo.GetAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(projects)

	case "check":
		if len(args) < 2 {
			return fmt.Errorf("usage: themectl check <projectId>")
		}
		result, err := updater.CheckForUpdate(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(result)

	case "apply":
		if len(args) < 2 {
			return fmt.Errorf("usage: themectl apply <projectId>")
		}
		result, err := updater.ApplyUpdate(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(result)

	case "apply-all":
		if len(args) < 2 {
			return fmt.Errorf("usage: themectl apply-all <themeId>")
		}
		results, err := updater.ApplyUpdateForTheme(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(results)

	case "updates":
		if len(args) < 3 || (args[2] != "on" && args[2] != "off") {
			return fmt.Errorf("usage: themectl updates <projectId> on|off")
		}
		return projectSvc.SetReceiveUpdates(ctx, args[1], args[2] == "on")

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

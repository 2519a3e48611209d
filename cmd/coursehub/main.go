package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/repository"
	"github.com/noah-isme/coursehub-api/internal/repository/memory"
	"github.com/noah-isme/coursehub-api/pkg/config"
	"github.com/noah-isme/coursehub-api/pkg/database"
	"github.com/noah-isme/coursehub-api/pkg/logger"
)

// @title CourseHub API
// @version 1.0.0
// @description Course catalog, enrollment and progress tracking.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "coursehub",
		Short:         "Course catalog and progress tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newImportCommand(), newTokenCommand())
	return root
}

// app is the configuration and logger every subcommand starts from.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &app{cfg: cfg, logger: logr}, nil
}

// openStores connects the configured store driver. The returned func releases
// its resources.
func (a *app) openStores(ctx context.Context) (repository.Stores, func(), error) {
	switch a.cfg.Store.Driver {
	case config.StoreDriverMemory:
		a.logger.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore().Stores(), func() {}, nil
	case config.StoreDriverPostgres, "":
		db, err := database.NewPostgres(ctx, a.cfg.Database)
		if err != nil {
			return repository.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
		}
		stores := repository.Stores{
			Courses:     repository.NewCourseRepository(db),
			Enrollments: repository.NewEnrollmentRepository(db),
			Submissions: repository.NewSubmissionRepository(db),
			ExportJobs:  repository.NewExportJobRepository(db),
		}
		return stores, func() { _ = db.Close() }, nil
	default:
		return repository.Stores{}, nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

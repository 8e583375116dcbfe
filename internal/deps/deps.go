// Package deps wires every component the pipeline needs from one
// place: cmd/server and cmd/cli both build a *Deps and never construct
// a store, the extractor, or the hub directly.
package deps

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/applog"
	"github.com/baihao/MedTest-Backend-sub000/internal/auth"
	"github.com/baihao/MedTest-Backend-sub000/internal/config"
	"github.com/baihao/MedTest-Backend-sub000/internal/dbschema"
	"github.com/baihao/MedTest-Backend-sub000/internal/extractor"
	"github.com/baihao/MedTest-Backend-sub000/internal/hub"
	"github.com/baihao/MedTest-Backend-sub000/internal/imagestore"
	"github.com/baihao/MedTest-Backend-sub000/internal/orchestrator"
	"github.com/baihao/MedTest-Backend-sub000/internal/store"
)

// Deps is the fully-wired dependency graph for one process.
type Deps struct {
	Config *config.Config
	Log    *logrus.Logger
	Pool   *pgxpool.Pool

	Users      *store.UserStore
	Workspaces *store.WorkspaceStore
	Jobs       *store.JobStore
	Reports    *store.ReportStore

	Auth      *auth.Service
	Extractor extractor.Extractor
	Images    imagestore.Store
	Hub       *hub.Hub

	Orchestrator *orchestrator.Orchestrator
}

// Build loads configuration, connects to Postgres, applies the schema,
// and constructs every component. Callers are responsible for calling
// Close when done.
func Build(ctx context.Context) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "loading config")
	}
	log := applog.New("info")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "connecting to postgres")
	}
	if err := dbschema.Apply(ctx, pool); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "applying schema")
	}

	users := store.NewUserStore(pool, log)
	workspaces := store.NewWorkspaceStore(pool, log)
	jobs := store.NewJobStore(pool, log)
	reports := store.NewReportStore(pool, log)

	authSvc := auth.New(cfg.SecretKey, users)
	llm := extractor.NewLLMClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.AITimeout, log)
	images, err := imagestore.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	notificationHub := hub.New(cfg.HeartbeatInterval, log)

	orch := orchestrator.New(jobs, reports, llm, notificationHub, cfg, log)

	return &Deps{
		Config:       cfg,
		Log:          log,
		Pool:         pool,
		Users:        users,
		Workspaces:   workspaces,
		Jobs:         jobs,
		Reports:      reports,
		Auth:         authSvc,
		Extractor:    llm,
		Images:       images,
		Hub:          notificationHub,
		Orchestrator: orch,
	}, nil
}

// Close releases the Postgres pool.
func (d *Deps) Close() {
	d.Pool.Close()
}

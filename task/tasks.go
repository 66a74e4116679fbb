package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/angas/glowbridge/config"
	"github.com/angas/glowbridge/database"
	"github.com/angas/glowbridge/purifier"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            *config.AppConfig
	MaintenanceTask func()
	PurifierTask    func()
}

func NewTasks(db *database.Database, device *purifier.Device, cnfg *config.AppConfig) *Tasks {
	logger := slog.Default().With("module", "tasks")
	t := &Tasks{
		cron:            cron.New(),
		cnfg:            cnfg,
		MaintenanceTask: NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg),
	}
	if device != nil {
		t.PurifierTask = NewPurifierTask(logger.With(slog.String("task", "purifier")), device)
	}
	return t
}

func (t *Tasks) Run() {
	_, err := t.cron.AddFunc("30 2 * * *", t.MaintenanceTask)
	if err != nil {
		panic(err)
	}
	if t.PurifierTask != nil {
		spec := fmt.Sprintf("@every %s", t.cnfg.Purifier.GetUpdateInterval())
		_, err = t.cron.AddFunc(spec, t.PurifierTask)
		if err != nil {
			panic(err)
		}
	}
	t.cron.Start()
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}

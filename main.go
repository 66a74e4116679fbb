package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/angas/glowbridge/config"
	"github.com/angas/glowbridge/coordinator"
	"github.com/angas/glowbridge/database"
	"github.com/angas/glowbridge/glowmarkt"
	"github.com/angas/glowbridge/hass"
	"github.com/angas/glowbridge/issues"
	"github.com/angas/glowbridge/logging"
	"github.com/angas/glowbridge/purifier"
	"github.com/angas/glowbridge/task"
	"github.com/angas/glowbridge/www"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("glowbridge is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	issuesReg := issues.NewRegistry(logger.With("module", "issues"))

	var device *purifier.Device
	if cnfg.Purifier.Enabled {
		device = purifier.NewDevice(logger.With("module", "purifier"))
	}

	glow := glowmarkt.New(cnfg.Glow, logger.With("module", "glowmarkt"))
	coord := coordinator.New(logger.With("module", "coordinator"), glow, cnfg.Glow.GetUpdateInterval())

	var bridge *hass.Bridge
	if cnfg.Mqtt.Enabled {
		bridge = hass.New(cnfg.Mqtt, cnfg.GetInstanceId(), device, cnfg.Purifier.GetName(), issuesReg, logger.With("module", "hass"))
		if device != nil {
			device.OnChange(bridge.PublishPurifierState)
		}
		if err := bridge.Connect(); err != nil {
			panic(fmt.Sprintf("mqtt connection error: %v", err))
		}
		defer bridge.Disconnect()
	} else {
		logger.Info("mqtt disabled, running without home assistant bridge")
	}

	server := www.NewServer(db, coord, issuesReg, cnfg)

	coord.OnRefresh(func(snap *coordinator.Snapshot) {
		issuesReg.Clear(issues.KeyReauthRequired)
		issuesReg.Clear(issues.KeyApiUnreachable)

		if bridge != nil {
			bridge.PublishSnapshot(snap)
		}
		server.BroadcastSnapshot(snap)

		saveCtx, saveCancel := context.WithTimeout(ctx, 30*time.Second)
		defer saveCancel()
		if err := db.SaveMeterHistory(saveCtx, historyRows(snap)); err != nil {
			logger.Error("saving meter history", slog.Any("error", err))
		}
	})

	coord.OnAuthFailed(func(err error) {
		issuesReg.Raise(issues.KeyReauthRequired, issues.SeverityCritical,
			fmt.Sprintf("Glowmarkt rejected the credentials, update the config: %v", err))
		if bridge != nil {
			bridge.MarkMetersUnavailable()
		}
	})

	coord.OnUpdateFailed(func(err error) {
		issuesReg.Raise(issues.KeyApiUnreachable, issues.SeverityWarning,
			fmt.Sprintf("Glowmarkt fetch failed, retrying on next cycle: %v", err))
		if bridge != nil {
			bridge.MarkMetersUnavailable()
		}
	})

	coord.Run(ctx)

	tasks := task.NewTasks(db, device, cnfg)
	tasks.Run()
	defer tasks.Stop()

	config.Watch(logger.With("module", "config"), func(newCnfg *config.AppConfig) {
		coord.SetInterval(newCnfg.Glow.GetUpdateInterval())
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
}

// historyRows flattens a snapshot into per-meter, per-energy-type records.
func historyRows(snap *coordinator.Snapshot) []database.MeterHistoryRow {
	var rows []database.MeterHistoryRow
	for _, m := range snap.Meters {
		for _, energy := range []struct {
			name   string
			totals coordinator.EnergyTotals
			has    bool
		}{
			{"electricity", m.Electricity, m.HasElectricity},
			{"gas", m.Gas, m.HasGas},
		} {
			if !energy.has {
				continue
			}
			rows = append(rows, database.MeterHistoryRow{
				FetchedAt:      snap.FetchedAt,
				MeterId:        m.MeterId,
				EnergyType:     energy.name,
				UsageToday:     energy.totals.UsageToday,
				UsageWeek:      energy.totals.UsageWeek,
				UsageMonth:     energy.totals.UsageMonth,
				CostToday:      energy.totals.CostToday,
				CostWeek:       energy.totals.CostWeek,
				CostMonth:      energy.totals.CostMonth,
				Rate:           energy.totals.Rate,
				StandingCharge: energy.totals.StandingCharge,
			})
		}
	}
	return rows
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}

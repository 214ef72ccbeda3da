package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/aurora2mqtt/internal/adapter/actor"
	"github.com/berfenger/aurora2mqtt/internal/adapter/modbusexport"
	"github.com/berfenger/aurora2mqtt/internal/adapter/sink"
	"github.com/berfenger/aurora2mqtt/internal/config"
	"github.com/berfenger/aurora2mqtt/internal/core/actor"
	"github.com/berfenger/aurora2mqtt/internal/server"
	"github.com/berfenger/aurora2mqtt/internal/util/actorutil"
	"github.com/berfenger/aurora2mqtt/pkg/aurora"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := config.Load(viper.New())
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	slog.Info("Using", "config", cfg.Redacted())

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("aurora2mqtt starting", zap.String("version", versioninfo.Short()),
		zap.String("inverter", fmt.Sprintf("%s:%d", cfg.Inverter.Host, cfg.Inverter.Port)),
		zap.Uint("address", cfg.Inverter.Address))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	lastReading := sink.NewLastReading()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, readerProvider(cfg, logger), mqttActorProvider(cfg, logger),
			storageActorProvider(cfg, logger), lastReading, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("could not start master actor", zap.Error(err))
		return
	}

	// optional Modbus export of the last reading
	var modbusServer *modbusexport.Server
	if cfg.ModbusExport.Enable {
		modbusServer, err = modbusexport.NewServer(cfg.ModbusExport, lastReading, logger)
		if err == nil {
			err = modbusServer.Start()
		}
		if err != nil {
			logger.Error("modbus export disabled", zap.Error(err))
			modbusServer = nil
		}
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	if modbusServer != nil {
		_ = modbusServer.Stop()
	}
	_ = ctx.StopFuture(pid).Wait()
	as.Shutdown()
}

func readerProvider(cfg *config.Config, logger *zap.Logger) actor.ReaderProvider {
	return func() (aurora.InverterReader, error) {
		return aurora.CreateInverterReader(cfg.Inverter.Host, cfg.Inverter.Port, uint8(cfg.Inverter.Address),
			cfg.Inverter.Timeout(), logger, nil)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func storageActorProvider(cfg *config.Config, logger *zap.Logger) actor.StorageActorProvider {
	return func(es *eventstream.EventStream) *adactor.StorageActor {
		return adactor.NewStorageActor(cfg, es, logger)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/home"
	"github.com/demetori/deme/members"
	"github.com/demetori/deme/proc"
	"github.com/demetori/deme/store"
	"github.com/demetori/deme/sys"
)

func main() {
	silent := flag.Bool("silent", false, "Disable all log output")
	logFile := flag.Bool("log-file", false, "Also write logs to a file")
	skipReg := flag.Bool("skip-reg", false, "Skip command registration")
	forceReg := flag.Bool("force-reg", false, "Register commands even if unchanged")
	flag.Parse()

	sys.InitLogger(*silent, *logFile)

	cfg, err := sys.LoadConfig()
	if err != nil {
		sys.LogFatal(sys.MsgConfigFailedToLoad, err)
	}
	sys.LogInfo(sys.MsgBotStarting, sys.GetProjectName())

	if err := run(cfg, *silent, *skipReg, *forceReg); err != nil {
		sys.LogFatal("%v", err)
	}
}

func run(cfg *sys.Config, silent, skipReg, forceReg bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	sys.SetAppContext(ctx)

	if err := sys.InitDatabase(ctx, cfg.DatabasePath); err != nil {
		return fmt.Errorf(sys.MsgBotDatabaseFail, err)
	}
	defer sys.CloseDatabase()

	events, roster, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf(sys.MsgBotStoreFail, err)
	}
	defer closeStore()

	sys.StartMetricsServer(ctx, cfg.MetricsAddr)

	client, err := sys.CreateClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	platform := home.NewPlatform(client, cfg)
	ctrl := attendance.NewController(events, platform, platform, attendance.SystemClock(), attendance.Options{})
	home.Bind(ctrl, platform)
	home.BindMembers(roster)
	proc.RegisterRecovery(ctrl)
	proc.RegisterStatusRotator(ctrl)

	if !skipReg {
		if err := sys.RegisterCommands(ctx, client, cfg.GuildID, forceReg); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
	}

	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf(sys.MsgBotGatewayFail, err)
	}

	<-ctx.Done()
	if !silent {
		fmt.Println()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sys.ShutdownDaemons(shutdownCtx)
	ctrl.Shutdown()

	if botUser, ok := client.Caches.SelfUser(); ok {
		sys.LogInfo(sys.MsgBotShutdown, botUser.Username)
	} else {
		sys.LogInfo(sys.MsgBotShutdown, sys.GetProjectName())
	}
	return nil
}

// openStores picks MongoDB when MONGO_URI is set and the local SQLite file otherwise.
func openStores(ctx context.Context, cfg *sys.Config) (attendance.Store, members.Store, func(), error) {
	if cfg.MongoURI == "" {
		sys.LogDatabase(sys.MsgStoreUsingSQLite)
		return store.NewSQLite(sys.DB), store.NewSQLiteMembers(sys.DB), func() {}, nil
	}

	m, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, m.Members(), func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Close(closeCtx); err != nil {
			sys.LogError("%v", err)
		}
	}, nil
}

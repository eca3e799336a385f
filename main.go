package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/database"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/web"
	"github.com/medreport/medreport/web/cache"
)

func initLogger() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config: ", err)
	}
	return cfg
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	cfg := loadConfig()
	initLogger()
	defer logger.CloseLogger()

	err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := database.CloseDB(); err != nil {
			logger.Warning("close database err:", err)
		}
	}()

	if err := database.EnsureAdmin(cfg.Admin); err != nil {
		log.Fatal(err)
	}

	if err := cache.InitRedis(cfg.RedisAddr); err != nil {
		log.Fatal(err)
	}
	defer cache.Close()

	server := web.NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Error("start server err:", err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("Received SIGHUP, restarting web server...")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer(cfg)
			if err := server.Start(); err != nil {
				logger.Error("restart server err:", err)
				return
			}
		default:
			logger.Infof("Received %v, shutting down...", sig)
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func migrateDb() {
	cfg := loadConfig()
	fmt.Println("Start migrating database...")
	if err := database.InitDB(&cfg.Database); err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()
	fmt.Println("Migration done!")
}

func createAdmin(email, password, name string) {
	cfg := loadConfig()
	if email == "" || password == "" {
		fmt.Println("email and password are required")
		os.Exit(1)
	}
	if err := database.InitDB(&cfg.Database); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer database.CloseDB()

	err := database.CreateAdmin(config.AdminSeed{Email: email, Password: password, Name: name})
	if err != nil {
		fmt.Println("create admin failed:", err)
		return
	}
	fmt.Println("create admin success")
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "medreport",
		Short: "Medical report triage server",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb()
		},
	}

	var adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Run: func(cmd *cobra.Command, args []string) {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			createAdmin(email, password, name)
		},
	}

	createCmd.Flags().String("email", "", "admin login email")
	createCmd.Flags().String("password", "", "admin password")
	createCmd.Flags().String("name", "Administrator", "admin display name")

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetName(), config.GetVersion())
		},
	}

	adminCmd.AddCommand(createCmd)
	rootCmd.AddCommand(runCmd, migrateCmd, adminCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

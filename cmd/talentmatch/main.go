package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"github.com/Zereker/talentmatch/internal/server"
)

var (
	configFile = flag.String("config", "configs/config.toml", "Path to config file")
	envFile    = flag.String("env", ".env", "Path to dotenv file with API keys")
)

func init() {
	flag.Parse()
}

func main() {
	// .env 可选，已有的环境变量优先
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}

	conf, err := server.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	srv, err := server.NewServer(conf)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	defer func() { _ = srv.Shutdown() }()

	if err = srv.Start(); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

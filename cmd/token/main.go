// Command token mints a development bearer token for a ledger address.
//
//	JWT_SECRET=... token -address 0xabc -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/pointledger/internal/domain"
	pkgconfig "github.com/utafrali/pointledger/pkg/config"
	"github.com/utafrali/pointledger/pkg/logger"
	"github.com/utafrali/pointledger/pkg/middleware"
)

type tokenConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"pointledger"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	address := flag.String("address", "", "ledger address to put in the sub claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	var cfg tokenConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.NewWithWriter("pointledger-token", cfg.LogLevel, os.Stderr)

	if err := domain.ValidateAddress(*address); err != nil {
		log.Error("invalid -address", slog.String("address", *address))
		os.Exit(2)
	}

	token, err := middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer).Issue(*address, *ttl)
	if err != nil {
		log.Error("failed to sign token", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Println(token)
}

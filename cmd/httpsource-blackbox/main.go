package main

import (
	"flag"
	"fmt"
	"os"

	sentry "github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gitlab.com/audiopipe/httpsource/internal/blackbox"
	"gitlab.com/audiopipe/httpsource/internal/log"
	"gitlab.com/audiopipe/httpsource/internal/logsanitizer"
	"gitlab.com/audiopipe/httpsource/internal/version"
	"gitlab.com/gitlab-org/labkit/tracing"
)

var (
	flagVersion = flag.Bool("version", false, "Print version and exit")
)

func flagUsage() {
	fmt.Println(version.GetVersionString())
	fmt.Printf("Usage: %v [OPTIONS] configfile\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = flagUsage
	flag.Parse()

	// If invoked with -version
	if *flagVersion {
		fmt.Println(version.GetVersionString())
		os.Exit(0)
	}

	if flag.NArg() != 1 || flag.Arg(0) == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		logrus.WithError(err).Fatal()
	}
}

func run(configPath string) error {
	// Environment overrides may live in a .env file next to the daemon.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load .env: %v", err)
		}
	}

	configFile, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer configFile.Close()

	cfg, err := blackbox.Load(configFile)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Configure(cfg.Logging.Format, cfg.Logging.Level)

	urlSanitizer := logsanitizer.NewURLSanitizerHook()
	urlSanitizer.AddPossibleURLField("locator", "url")
	log.AddHook(urlSanitizer)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: version.GetVersion(),
		}); err != nil {
			return fmt.Errorf("sentry init: %v", err)
		}
	}

	tracing.Initialize(tracing.WithServiceName("httpsource-blackbox"))

	return blackbox.Run(&cfg)
}

package main

import (
	"os"

	"github.com/podologia/agenda/libs/config"
	"github.com/podologia/agenda/libs/db"
	"github.com/podologia/agenda/libs/runtime"
	"github.com/podologia/agenda/services/booking-service/migrations"
)

func main() {
	_ = config.LoadDotEnv()
	logger := runtime.NewLogger("booking-migrate")

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("missing configuration", "err", err)
		os.Exit(1)
	}
	if err := db.Migrate(dbURL, migrations.FS, "booking_schema_migrations"); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}
	logger.Info("booking migrations applied")
}

package main

import (
	"context"
	"flag"
	"log"

	"github.com/ucsf-education/ldapsync/config"
	"github.com/ucsf-education/ldapsync/database"
	"github.com/ucsf-education/ldapsync/directory"
	"github.com/ucsf-education/ldapsync/importer"
)

func main() {
	configName := flag.String("config", "settings.env", "path to the environment configuration file")
	since := flag.Int64("since", 0, "override the incremental window start (epoch seconds, 0 = use stored watermark)")
	flag.Parse()

	ctx := context.Background()
	cfg := config.LoadEnvConfig(*configName)

	if err := database.RunMigrations(cfg.DatabaseDSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	db := database.NewDatabase(cfg.DatabaseDSN)
	if err := db.Connect(ctx); err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	inst, err := directory.NewInstance(cfg)
	if err != nil {
		log.Fatalf("directory setup failed: %v", err)
	}
	log.Printf("Connecting to LDAP server %s ...", cfg.HostURL)
	if err := inst.Connect(cfg.BindDN, cfg.BindPassword, cfg.StartTLS); err != nil {
		log.Fatalf("%v", err)
	}
	defer inst.Close()
	log.Print("successfully connected.")

	session, err := db.AcquireSession(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer session.Release(ctx)

	imp := importer.New(inst, database.NewReconciler(session, cfg), db, *since)
	if err := imp.Run(ctx); err != nil {
		log.Fatalf("sync failed: %v", err)
	}
}

// Prefetch runs the directory-wide listing: it rewrites the local user
// list cache artifact and fully refreshes the provenance table, deleting
// rows for identities that disappeared from the directory.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/ucsf-education/ldapsync/config"
	"github.com/ucsf-education/ldapsync/database"
	"github.com/ucsf-education/ldapsync/directory"
	"github.com/ucsf-education/ldapsync/importer"
)

func main() {
	configName := flag.String("config", "settings.env", "path to the environment configuration file")
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
	if err := inst.Connect(cfg.BindDN, cfg.BindPassword, cfg.StartTLS); err != nil {
		log.Fatalf("%v", err)
	}
	defer inst.Close()

	if err := importer.InvalidateUserListCache(cfg.CacheDir); err != nil {
		log.Fatalf("%v", err)
	}

	store := database.NewProvenanceStore(db.ConnectionPool)
	userlist, err := importer.RefreshProvenance(ctx, inst, store, time.Now())
	if err != nil {
		log.Fatalf("provenance refresh failed: %v", err)
	}

	if len(userlist) > 0 {
		path, err := importer.WriteUserListCache(cfg.CacheDir, userlist)
		if err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("Wrote user list cache to %s", path)
	}
}

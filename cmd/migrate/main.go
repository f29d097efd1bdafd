package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/web3nomad/Rabby/pkg/config"
)

func main() {
	var command, dir string
	var steps int
	flag.StringVar(&command, "cmd", "up", "Command to run: up, down, version")
	flag.StringVar(&dir, "dir", "migrations", "Directory holding the *.sql migrations")
	flag.IntVar(&steps, "steps", 0, "Apply only n migrations (negative rolls back); 0 means all")
	flag.Parse()

	// 加载配置
	config.Init()
	db := config.Global.DB

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		db.User, db.Password, db.Host, db.Port, db.Name)

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		log.Fatalf("Migration init failed: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if steps != 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migration up done")
	case "down":
		if steps != 0 {
			err = m.Steps(-abs(steps))
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migration down done")
	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatalf("Read version failed: %v", err)
		}
		log.Printf("Schema version %d (dirty=%v)", v, dirty)
	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
